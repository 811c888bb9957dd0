package pricing

import (
	"fmt"

	evmarb "evmarb"
)

func errMissingSnapshot(id evmarb.PoolID) error {
	return fmt.Errorf("pool %s has no snapshot for its dex family", id.Address)
}

func errUnknownFamily(f evmarb.DexFamily) error {
	return fmt.Errorf("unknown dex family %s", f)
}
