package cryptocore

import "fmt"

// DerivePIN maps the 32-byte UKEY2 auth secret to the 4-decimal-digit PIN
// shown to both users for out-of-band verification: auth[0] and auth[1]
// are read as signed bytes, combined as auth[0] + auth[1]*256, the
// magnitude is taken mod 9999, and the result is offset by 1 so the PIN
// never reads "0000".
func DerivePIN(auth []byte) (string, error) {
	if len(auth) < 2 {
		return "", fmt.Errorf("%w: auth secret too short for pin", ErrKeyDerivation)
	}
	b0 := int32(int8(auth[0]))
	b1 := int32(int8(auth[1]))
	v := b0 + b1*256
	if v < 0 {
		v = -v
	}
	pin := v%9999 + 1
	return fmt.Sprintf("%04d", pin), nil
}
