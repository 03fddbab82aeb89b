package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"storefront/internal/domain"
	"storefront/internal/service/variant"
	"storefront/internal/upload"
)

var (
	variantsSpecFile  string
	variantsPrevFile  string
	variantsOutFile   string
	variantsStateFile string
	variantsIndex     int
	variantsImage     string
)

// variantSpec is the YAML document accepted by "variants generate".
//
//	options:
//	  - name: Size
//	    values: [S, M, L]
//	fields:
//	  - match: {Size: M}
//	    set: {sku: TEE-M, price: "19.99", isDefault: "true"}
type variantSpec struct {
	Options []struct {
		Name   string   `yaml:"name"`
		Values []string `yaml:"values"`
	} `yaml:"options"`
	Fields []struct {
		Match map[string]string `yaml:"match"`
		Set   map[string]string `yaml:"set"`
	} `yaml:"fields"`
}

var variantsCmd = &cobra.Command{
	Use:   "variants",
	Short: "Build the variant grid of a product",
}

var variantsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate variants from an option file, keeping data from a previous state",
	Example: `  storefront variants generate -f tee.yaml
  storefront variants generate -f tee.yaml --previous tee.json --out tee.json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		raw, err := os.ReadFile(variantsSpecFile)
		if err != nil {
			return fmt.Errorf("read option file: %w", err)
		}
		var spec variantSpec
		if err := yaml.Unmarshal(raw, &spec); err != nil {
			return fmt.Errorf("parse option file %s: %w", variantsSpecFile, err)
		}

		var prev domain.VariantState
		if variantsPrevFile != "" {
			if prev, err = readState(variantsPrevFile); err != nil {
				return err
			}
		}

		state := domain.VariantState{Variants: prev.Variants}
		for _, o := range spec.Options {
			state.Options = append(state.Options, domain.VariantOption{Name: o.Name, Values: o.Values})
		}

		b := variant.NewBuilder(variant.WithLogger(logger), variant.WithNotifier(cliNotifier(cmd)))
		if err := b.Load(ctx, state); err != nil {
			return err
		}
		for _, f := range spec.Fields {
			idx := findVariant(b.Variants(), domain.Attributes(f.Match))
			if idx < 0 {
				return fmt.Errorf("no variant matches %s", formatAttrs(domain.Attributes(f.Match)))
			}
			for field, value := range f.Set {
				if err := b.SetVariantField(ctx, idx, field, value); err != nil {
					return err
				}
			}
		}
		return writeState(cmd.OutOrStdout(), variantsOutFile, b.State())
	},
}

var variantsUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload an image for one variant and store its path in the state file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		state, err := readState(variantsStateFile)
		if err != nil {
			return err
		}
		sess, err := openSession(ctx)
		if err != nil {
			return err
		}
		defer sess.close()

		b := variant.NewBuilder(
			variant.WithUploader(upload.New(sess.client, upload.WithMaxBytes(cfg.UploadMaxBytes), upload.WithLogger(logger))),
			variant.WithLogger(logger),
			variant.WithNotifier(cliNotifier(cmd)),
		)
		if err := b.Load(ctx, state); err != nil {
			return err
		}

		f, err := os.Open(variantsImage)
		if err != nil {
			return fmt.Errorf("open image: %w", err)
		}
		defer f.Close()

		path, err := b.UploadVariantImage(ctx, variantsIndex, filepath.Base(variantsImage), f)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), path)
		return writeState(cmd.OutOrStdout(), variantsStateFile, b.State())
	},
}

func init() {
	variantsGenerateCmd.Flags().StringVarP(&variantsSpecFile, "file", "f", "", "YAML option file")
	variantsGenerateCmd.Flags().StringVar(&variantsPrevFile, "previous", "", "Previous state JSON whose variant data is kept")
	variantsGenerateCmd.Flags().StringVarP(&variantsOutFile, "out", "o", "", "Write the state here instead of stdout")
	_ = variantsGenerateCmd.MarkFlagRequired("file")

	variantsUploadCmd.Flags().StringVar(&variantsStateFile, "state", "", "State JSON to update in place")
	variantsUploadCmd.Flags().IntVar(&variantsIndex, "index", 0, "Variant index")
	variantsUploadCmd.Flags().StringVar(&variantsImage, "file", "", "Image to upload")
	_ = variantsUploadCmd.MarkFlagRequired("state")
	_ = variantsUploadCmd.MarkFlagRequired("file")

	variantsCmd.AddCommand(variantsGenerateCmd, variantsUploadCmd)
}

func findVariant(records []domain.VariantRecord, attrs domain.Attributes) int {
	for i, r := range records {
		if r.Attributes.Equal(attrs) {
			return i
		}
	}
	return -1
}

func readState(path string) (domain.VariantState, error) {
	var state domain.VariantState
	raw, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return state, fmt.Errorf("parse state %s: %w", path, err)
	}
	return state, nil
}

func writeState(stdout io.Writer, path string, state domain.VariantState) error {
	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')
	if path == "" {
		_, err = stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
