// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"testing"
)

func TestLoadOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		opts       LoadOptions
		wantFields int
	}{
		{"all empty", LoadOptions{}, 0},
		{"all set", LoadOptions{ConfigFilePath: "/tmp/mp.cue", ConfigDirPath: "/tmp/mp", BaseDir: "/srv/content"}, 0},
		{"whitespace file", LoadOptions{ConfigFilePath: "   "}, 1},
		{"whitespace dir and base", LoadOptions{ConfigDirPath: "\t", BaseDir: " "}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opts.Validate()
			if tt.wantFields == 0 {
				if err != nil {
					t.Errorf("Validate() = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidLoadOptions) {
				t.Fatalf("Validate() = %v, want ErrInvalidLoadOptions", err)
			}
			var loadErr *InvalidLoadOptionsError
			if !errors.As(err, &loadErr) || len(loadErr.FieldErrors) != tt.wantFields {
				t.Errorf("field errors = %v, want %d", loadErr, tt.wantFields)
			}
		})
	}
}
