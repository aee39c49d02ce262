package node

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Credentials is a decrypted credential set as resolved by the host.
type Credentials map[string]any

// Decode maps the credential set onto out, a pointer to a struct with
// mapstructure tags. Numbers given as strings (and vice versa) are
// converted.
func (c Credentials) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("creating credential decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(c)); err != nil {
		return fmt.Errorf("decoding credentials: %w", err)
	}
	return nil
}
