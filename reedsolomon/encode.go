package reedsolomon

import "github.com/pkg/errors"

// generator builds the degree-parity generator polynomial
// (x - 2^0)(x - 2^1)...(x - 2^(parity-1)).
func generator(parity int) gfPoly {
	g := gfPoly{1}
	for i := 0; i < parity; i++ {
		g = polyMul(g, gfPoly{1, gfExp(i)})
	}
	return g
}

// Encode fills the trailing parity bytes of codeword from its leading
// len(codeword)-parity data bytes, which must already be in place.
func Encode(codeword []byte, parity int) error {
	if parity <= 0 {
		return errors.New("reedsolomon: parity count must be positive")
	}
	data := len(codeword) - parity
	if data <= 0 {
		return errors.Errorf("reedsolomon: codeword of %d bytes leaves no data next to %d parity bytes", len(codeword), parity)
	}
	info := polyTrim(append(gfPoly{}, codeword[:data]...))
	rem := polyMod(mulMonomial(info, parity, 1), generator(parity))
	for i := data; i < len(codeword); i++ {
		codeword[i] = 0
	}
	copy(codeword[len(codeword)-len(rem):], rem)
	return nil
}
