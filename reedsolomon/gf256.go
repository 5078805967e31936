// Package reedsolomon implements the Reed-Solomon block code protecting
// the tag payload: byte symbols over GF(256) with the QR primitive
// polynomial x^8 + x^4 + x^3 + x^2 + 1. The decoder locates and corrects
// up to parity/2 byte errors in place and fails deterministically beyond
// that.
package reedsolomon

// exp is doubled so the product of two logs indexes without a modulo.
var (
	expTable [512]byte
	logTable [256]byte
)

func init() {
	x := 1
	for i := 0; i < 255; i++ {
		expTable[i] = byte(x)
		expTable[i+255] = byte(x)
		logTable[x] = byte(i)
		x <<= 1
		if x >= 256 {
			x ^= 0x11D
		}
	}
}

// gfExp returns 2^p.
func gfExp(p int) byte {
	return expTable[p%255]
}

func gfMul(a, b byte) byte {
	if a == 0 || b == 0 {
		return 0
	}
	return expTable[int(logTable[a])+int(logTable[b])]
}

// gfInv returns the multiplicative inverse of a nonzero element.
func gfInv(a byte) byte {
	return expTable[255-int(logTable[a])]
}
