package keys

import (
	"crypto/elliptic"
)

/*
Fractal keys and signing are based on elliptic curve cryptography. We use the
NIST P-256 curve, which is the curve implemented by the WebCrypto API that
browser nodes sign with, so signatures interoperate across implementations.
*/

//Curve returns the elliptic.Curve used for all Fractal keys.
func Curve() elliptic.Curve {
	return elliptic.P256()
}
