// Package variant builds the product variant grid edited in the admin product form.
package variant

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/upload"
)

// Editable variant fields accepted by SetVariantField.
const (
	FieldSKU           = "sku"
	FieldPrice         = "price"
	FieldSalePrice     = "salePrice"
	FieldStockQuantity = "stockQuantity"
	FieldStockStatus   = "stockStatus"
	FieldImage         = "image"
	FieldBarcode       = "barcode"
	FieldIsDefault     = "isDefault"
)

type uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (upload.Result, error)
}

// Builder holds the option axes and the generated variants. It is safe for concurrent use.
type Builder struct {
	uploader uploader
	notifier notify.Notifier
	logger   *zap.Logger

	mu       sync.Mutex
	options  []domain.VariantOption
	variants []domain.VariantRecord
}

type Option func(*Builder)

func WithUploader(u uploader) Option {
	return func(b *Builder) { b.uploader = u }
}

func WithNotifier(n notify.Notifier) Option {
	return func(b *Builder) {
		if n != nil {
			b.notifier = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = logging.OrNop(l).Named("variant") }
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		notifier: notify.NewLog(nil),
		logger:   zap.NewNop(),
		variants: []domain.VariantRecord{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddOption appends an empty axis called name.
func (b *Builder) AddOption(ctx context.Context, name string) error {
	const op = "add option"
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.options) >= domain.MaxVariantOptions {
		return b.invalid(ctx, op, "You can add up to %d options", domain.MaxVariantOptions)
	}
	name = strings.TrimSpace(name)
	if name != "" && b.hasName(name, -1) {
		return b.invalid(ctx, op, "Option %q already exists", name)
	}
	b.options = append(b.options, domain.VariantOption{Name: name, Values: []string{}})
	b.regenerate()
	return nil
}

// SetOptionName renames the axis at index.
func (b *Builder) SetOptionName(ctx context.Context, index int, name string) error {
	const op = "rename option"
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOption(ctx, op, index); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name != "" && b.hasName(name, index) {
		return b.invalid(ctx, op, "Option %q already exists", name)
	}
	b.options[index].Name = name
	b.regenerate()
	return nil
}

// SetOptionValues replaces the values of the axis at index. Values are trimmed and
// deduplicated keeping their first position.
func (b *Builder) SetOptionValues(ctx context.Context, index int, values []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOption(ctx, "set option values", index); err != nil {
		return err
	}
	b.options[index].Values = cleanValues(values)
	b.regenerate()
	return nil
}

// RemoveOption drops the axis at index; later axes move down by one.
func (b *Builder) RemoveOption(ctx context.Context, index int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOption(ctx, "remove option", index); err != nil {
		return err
	}
	b.options = append(b.options[:index], b.options[index+1:]...)
	b.regenerate()
	return nil
}

// Regenerate rebuilds the variants from the current options and returns them.
func (b *Builder) Regenerate() []domain.VariantRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.regenerate()
	return cloneRecords(b.variants)
}

// SetVariantField edits one field of the variant at index. Empty values clear optional
// numeric fields. It does not regenerate.
func (b *Builder) SetVariantField(ctx context.Context, index int, field, value string) error {
	const op = "set variant field"
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.variants) {
		return b.invalid(ctx, op, "Variant %d does not exist", index)
	}
	rec := &b.variants[index]
	value = strings.TrimSpace(value)

	switch field {
	case FieldSKU:
		rec.SKU = value
	case FieldBarcode:
		rec.Barcode = value
	case FieldImage:
		rec.Image = value
	case FieldPrice, FieldSalePrice:
		d, err := parseMoney(value)
		if err != nil {
			return b.invalid(ctx, op, "Invalid %s %q", field, value)
		}
		if field == FieldPrice {
			rec.Price = d
		} else {
			rec.SalePrice = d
		}
	case FieldStockQuantity:
		if value == "" {
			rec.StockQuantity = nil
			break
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return b.invalid(ctx, op, "Invalid stock quantity %q", value)
		}
		rec.StockQuantity = &n
	case FieldStockStatus:
		switch value {
		case domain.StockInStock, domain.StockOutOfStock, domain.StockBackorder, "":
			rec.StockStatus = value
		default:
			return b.invalid(ctx, op, "Unknown stock status %q", value)
		}
	case FieldIsDefault:
		on, err := strconv.ParseBool(value)
		if err != nil {
			return b.invalid(ctx, op, "Invalid default flag %q", value)
		}
		if on {
			for i := range b.variants {
				b.variants[i].IsDefault = false
			}
		}
		rec.IsDefault = on
	default:
		return b.invalid(ctx, op, "Unknown variant field %q", field)
	}
	return nil
}

// UploadVariantImage uploads r and stores the resulting path on the variant at index.
// The variant is looked up again by its attributes once the upload finishes, so edits made
// in the meantime are respected. On failure the variant keeps its previous image.
func (b *Builder) UploadVariantImage(ctx context.Context, index int, filename string, r io.Reader) (string, error) {
	const op = "upload variant image"
	b.mu.Lock()
	if b.uploader == nil {
		err := b.invalid(ctx, op, "Image upload is not available")
		b.mu.Unlock()
		return "", err
	}
	if index < 0 || index >= len(b.variants) {
		err := b.invalid(ctx, op, "Variant %d does not exist", index)
		b.mu.Unlock()
		return "", err
	}
	attrs := b.variants[index].Attributes.Clone()
	b.mu.Unlock()

	res, err := b.uploader.Upload(ctx, filename, r)
	if err != nil {
		b.logger.Warn("variant image upload failed", zap.String("attributes", attrs.Key()), zap.Error(err))
		notify.Error(ctx, b.notifier, domain.MessageOf(err, "Image upload failed"))
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.variants {
		if b.variants[i].Attributes.Equal(attrs) {
			b.variants[i].Image = res.Stored()
			notify.Success(ctx, b.notifier, "Image uploaded")
			return res.Stored(), nil
		}
	}
	return "", b.invalid(ctx, op, "The variant was removed while its image was uploading")
}

// State returns the serializable builder state.
func (b *Builder) State() domain.VariantState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return domain.VariantState{Options: cloneOptions(b.options), Variants: cloneRecords(b.variants)}
}

// Load replaces the builder state, typically with what a saved product form held, and
// regenerates so the variants match the options.
func (b *Builder) Load(ctx context.Context, state domain.VariantState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(state.Options) > domain.MaxVariantOptions {
		return b.invalid(ctx, "load variants", "You can add up to %d options", domain.MaxVariantOptions)
	}
	opts := cloneOptions(state.Options)
	for i := range opts {
		opts[i].Name = strings.TrimSpace(opts[i].Name)
		opts[i].Values = cleanValues(opts[i].Values)
	}
	b.options = opts
	b.variants = cloneRecords(state.Variants)
	b.regenerate()
	return nil
}

func (b *Builder) Options() []domain.VariantOption {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneOptions(b.options)
}

func (b *Builder) Variants() []domain.VariantRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneRecords(b.variants)
}

func (b *Builder) regenerate() {
	b.variants = Expand(b.options, b.variants)
}

func (b *Builder) checkOption(ctx context.Context, op string, index int) error {
	if index < 0 || index >= len(b.options) {
		return b.invalid(ctx, op, "Option %d does not exist", index)
	}
	return nil
}

func (b *Builder) hasName(name string, except int) bool {
	for i, o := range b.options {
		if i != except && strings.EqualFold(strings.TrimSpace(o.Name), name) {
			return true
		}
	}
	return false
}

func (b *Builder) invalid(ctx context.Context, op, format string, args ...any) error {
	err := domain.NewError(domain.KindValidation, op, nil, format, args...)
	notify.Error(ctx, b.notifier, err.Message)
	return err
}

func parseMoney(v string) (decimal.NullDecimal, error) {
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, fmt.Errorf("negative amount %s", v)
	}
	return decimal.NewNullDecimal(d), nil
}

func cloneOptions(in []domain.VariantOption) []domain.VariantOption {
	out := make([]domain.VariantOption, len(in))
	for i, o := range in {
		out[i] = domain.VariantOption{Name: o.Name, Values: append([]string{}, o.Values...)}
	}
	return out
}

func cloneRecords(in []domain.VariantRecord) []domain.VariantRecord {
	out := make([]domain.VariantRecord, len(in))
	for i, r := range in {
		out[i] = cloneRecord(r)
	}
	return out
}
