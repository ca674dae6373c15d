// Package initwfn creates Gorgonia weight initialization functions by
// name, so that initialization schemes can be selected from
// configuration files and command line flags.
package initwfn

import (
	"fmt"
	"strings"

	G "gorgonia.org/gorgonia"
)

// Available initialization schemes
const (
	GlorotU = "glorotu"
	GlorotN = "glorotn"
	HeU     = "heu"
	HeN     = "hen"
	Zeroes  = "zeroes"
	Ones    = "ones"
)

// New returns the named weight initialization function. The gain
// scales the Glorot and He distributions and is ignored by the
// constant schemes.
func New(name string, gain float64) (G.InitWFn, error) {
	switch strings.ToLower(name) {
	case GlorotU:
		return G.GlorotU(gain), nil
	case GlorotN:
		return G.GlorotN(gain), nil
	case HeU:
		return G.HeU(gain), nil
	case HeN:
		return G.HeN(gain), nil
	case Zeroes:
		return G.Zeroes(), nil
	case Ones:
		return G.Ones(), nil
	}
	return nil, fmt.Errorf("new: unknown weight initialization %q", name)
}
