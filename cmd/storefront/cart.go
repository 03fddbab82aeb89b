package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"storefront/internal/domain"
	"storefront/internal/service/cart"
)

var (
	cartQty   int
	cartAttrs map[string]string
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Show and change the cart",
}

var cartShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cart as persisted locally, without contacting the store",
	Args:  cobra.NoArgs,
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, _ []string) error {
		printCart(cmd.OutOrStdout(), svc.Lines(), svc.Summary())
		return nil
	}),
}

var cartRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Fetch the cart from the store",
	Args:  cobra.NoArgs,
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, _ []string) error {
		res, err := svc.RefreshCart(cmd.Context())
		printCart(cmd.OutOrStdout(), res.Lines, res.Summary)
		return err
	}),
}

var cartAddCmd = &cobra.Command{
	Use:   "add <productId>",
	Short: "Add a product to the cart",
	Example: `  storefront cart add 101 --qty 2
  storefront cart add 101 --attr Size=M,Color=Red`,
	Args: cobra.ExactArgs(1),
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}
		res, err := svc.AddToCart(cmd.Context(), id, cartQty, domain.Attributes(cartAttrs))
		printCart(cmd.OutOrStdout(), res.Lines, res.Summary)
		return err
	}),
}

var cartUpdateCmd = &cobra.Command{
	Use:   "update <productId> <quantity>",
	Short: "Set the quantity of a cart line (minimum 1)",
	Args:  cobra.ExactArgs(2),
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity %q: %w", args[1], err)
		}
		res, err := svc.UpdateCartItem(cmd.Context(), id, qty, domain.Attributes(cartAttrs))
		printCart(cmd.OutOrStdout(), res.Lines, res.Summary)
		return err
	}),
}

var cartRemoveCmd = &cobra.Command{
	Use:   "remove <productId>",
	Short: "Remove a cart line",
	Args:  cobra.ExactArgs(1),
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}
		res, err := svc.RemoveFromCart(cmd.Context(), id, domain.Attributes(cartAttrs))
		printCart(cmd.OutOrStdout(), res.Lines, res.Summary)
		return err
	}),
}

var cartClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the locally persisted cart",
	Args:  cobra.NoArgs,
	RunE: withCart(func(cmd *cobra.Command, svc *cart.Service, _ []string) error {
		if err := svc.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cart cleared")
		return nil
	}),
}

func init() {
	cartAddCmd.Flags().IntVarP(&cartQty, "qty", "q", 1, "Quantity to add")
	for _, c := range []*cobra.Command{cartAddCmd, cartUpdateCmd, cartRemoveCmd} {
		c.Flags().StringToStringVarP(&cartAttrs, "attr", "a", nil, "Variant attributes, e.g. Size=M,Color=Red")
	}
	cartCmd.AddCommand(cartShowCmd, cartRefreshCmd, cartAddCmd, cartUpdateCmd, cartRemoveCmd, cartClearCmd)
}

func withCart(run func(cmd *cobra.Command, svc *cart.Service, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close()

		svc := cart.New(sess.client, sess.store,
			cart.WithLogger(logger),
			cart.WithNotifier(cliNotifier(cmd)),
			cart.WithRefreshAttempts(cfg.RefreshAttempts),
		)
		if err := svc.Load(ctx); err != nil {
			return fmt.Errorf("load cart record: %w", err)
		}
		return run(cmd, svc, args)
	}
}

func printCart(w io.Writer, lines []domain.CartLine, sum cart.Summary) {
	if len(lines) == 0 {
		fmt.Fprintln(w, "cart is empty")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tNAME\tOPTIONS\tQTY\tPRICE\tLINE TOTAL")
	for _, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s %s\t%s\n",
			l.ProductID, l.Name, formatAttrs(l.VariantAttributes), l.Quantity,
			l.Price.StringFixed(2), l.Currency, l.LineTotal().StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintf(w, "\nitems: %d  subtotal: %s  tax: %s  total: %s %s\n",
		sum.Count, sum.Subtotal.StringFixed(2), sum.Tax.StringFixed(2), sum.Total.StringFixed(2), sum.Currency)
}

func formatAttrs(a domain.Attributes) string {
	if len(a) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + a[k]
	}
	return strings.Join(parts, ",")
}

func parseProductID(s string) (domain.ProductID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid product id %q", s)
	}
	return domain.ProductID(n), nil
}
