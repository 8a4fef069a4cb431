package sources

import (
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// ExternalOrderKey identifies one upstream order. Shopify and WooCommerce ids
// are 64-bit integers, manual ids are opaque strings.
type ExternalOrderKey struct {
	Source enums.Source
	ID     string
}

// NewKey validates id for source and returns the normalized key.
func NewKey(source enums.Source, id string) (ExternalOrderKey, error) {
	if !source.IsValid() {
		return ExternalOrderKey{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown source %q", source))
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ExternalOrderKey{}, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if source.HasNumericIDs() {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return ExternalOrderKey{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s order id must be a positive integer", source))
		}
		id = strconv.FormatInt(n, 10)
	}
	return ExternalOrderKey{Source: source, ID: id}, nil
}

// IntKey builds a key for an integer-identified source.
func IntKey(source enums.Source, id int64) ExternalOrderKey {
	return ExternalOrderKey{Source: source, ID: strconv.FormatInt(id, 10)}
}

// Int64 returns the numeric id for Shopify and WooCommerce keys.
func (k ExternalOrderKey) Int64() (int64, error) {
	n, err := strconv.ParseInt(k.ID, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("%s order id is not numeric", k.Source))
	}
	return n, nil
}

func (k ExternalOrderKey) String() string {
	return string(k.Source) + ":" + k.ID
}
