package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"storefront/internal/domain"
	"storefront/internal/service/wishlist"
)

var wishlistCmd = &cobra.Command{
	Use:   "wishlist",
	Short: "Show and change the wishlist",
}

var wishlistShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch and print the wishlist",
	Args:  cobra.NoArgs,
	RunE: withWishlist(func(cmd *cobra.Command, svc *wishlist.Service, _ []string) error {
		res, err := svc.Refresh(cmd.Context())
		printWishlist(cmd.OutOrStdout(), res.Items)
		return err
	}),
}

func wishlistAction(use, short string, fn func(*wishlist.Service) func(*cobra.Command, domain.ProductID) (wishlist.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <productId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withWishlist(func(cmd *cobra.Command, svc *wishlist.Service, args []string) error {
			id, err := parseProductID(args[0])
			if err != nil {
				return err
			}
			res, err := fn(svc)(cmd, id)
			printWishlist(cmd.OutOrStdout(), res.Items)
			return err
		}),
	}
}

func init() {
	wishlistCmd.AddCommand(
		wishlistShowCmd,
		wishlistAction("add", "Add a product to the wishlist", func(s *wishlist.Service) func(*cobra.Command, domain.ProductID) (wishlist.Result, error) {
			return func(cmd *cobra.Command, id domain.ProductID) (wishlist.Result, error) { return s.Add(cmd.Context(), id) }
		}),
		wishlistAction("remove", "Remove a product from the wishlist", func(s *wishlist.Service) func(*cobra.Command, domain.ProductID) (wishlist.Result, error) {
			return func(cmd *cobra.Command, id domain.ProductID) (wishlist.Result, error) { return s.Remove(cmd.Context(), id) }
		}),
		wishlistAction("toggle", "Add the product if missing, remove it otherwise", func(s *wishlist.Service) func(*cobra.Command, domain.ProductID) (wishlist.Result, error) {
			return func(cmd *cobra.Command, id domain.ProductID) (wishlist.Result, error) { return s.Toggle(cmd.Context(), id) }
		}),
	)
}

func withWishlist(run func(cmd *cobra.Command, svc *wishlist.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close()

		svc := wishlist.New(sess.client, sess.store,
			wishlist.WithLogger(logger),
			wishlist.WithNotifier(cliNotifier(cmd)),
		)
		if err := svc.Load(ctx); err != nil {
			return fmt.Errorf("load wishlist record: %w", err)
		}
		return run(cmd, svc, args)
	}
}

func printWishlist(w io.Writer, items []domain.WishlistItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "wishlist is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tPRICE")
	for _, it := range items {
		price := "-"
		if it.Price != nil {
			price = it.Price.StringFixed(2) + " " + it.Currency
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", it.ProductID, it.Name, price)
	}
	tw.Flush()
}
