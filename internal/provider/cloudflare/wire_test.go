package cloudflare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCFErrors(t *testing.T) {
	cases := []struct {
		name                                  string
		errs                                  []cfError
		wantAuth, wantConflict, wantNotFound bool
	}{
		{"auth 1000", []cfError{{Code: 1000}}, true, false, false},
		{"auth 10000", []cfError{{Code: 10000}}, true, false, false},
		{"conflict 81053", []cfError{{Code: 81053}}, false, true, false},
		{"conflict 81057", []cfError{{Code: 81057}}, false, true, false},
		{"not found 81044", []cfError{{Code: 81044}}, false, false, true},
		{"unmapped", []cfError{{Code: 42}}, false, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, isAuth, isConflict, isNotFound := classifyCFErrors(c.errs)
			assert.Equal(t, c.wantAuth, isAuth)
			assert.Equal(t, c.wantConflict, isConflict)
			assert.Equal(t, c.wantNotFound, isNotFound)
		})
	}
}
