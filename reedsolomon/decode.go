package reedsolomon

import "github.com/pkg/errors"

// ErrCorrectionFailed indicates the error count exceeded the correction
// capacity of the code; no payload can be recovered.
var ErrCorrectionFailed = errors.New("reedsolomon: error correction capacity exceeded")

// Decode corrects up to parity/2 byte errors in codeword in place and
// returns the number of errors corrected.
func Decode(codeword []byte, parity int) (int, error) {
	if parity <= 0 {
		return 0, errors.New("reedsolomon: parity count must be positive")
	}
	if len(codeword) <= parity {
		return 0, errors.Errorf("reedsolomon: codeword of %d bytes leaves no data next to %d parity bytes", len(codeword), parity)
	}
	received := polyTrim(append(gfPoly{}, codeword...))
	syndromes := make(gfPoly, parity)
	noError := true
	for i := 0; i < parity; i++ {
		s := received.eval(gfExp(i))
		syndromes[parity-1-i] = s
		if s != 0 {
			noError = false
		}
	}
	if noError {
		return 0, nil
	}

	sigma, omega, err := euclidean(monomial(parity, 1), polyTrim(syndromes), parity)
	if err != nil {
		return 0, err
	}
	locations, err := errorLocations(sigma)
	if err != nil {
		return 0, err
	}
	magnitudes := errorMagnitudes(omega, locations)
	for i, loc := range locations {
		pos := len(codeword) - 1 - int(logTable[loc])
		if pos < 0 {
			return 0, ErrCorrectionFailed
		}
		codeword[pos] ^= magnitudes[i]
	}
	return len(locations), nil
}

// euclidean runs the extended Euclidean algorithm on x^parity and the
// syndrome polynomial until the remainder degree drops below parity/2,
// yielding the error locator sigma and error evaluator omega.
func euclidean(a, b gfPoly, capacity int) (sigma, omega gfPoly, err error) {
	if a.degree() < b.degree() {
		a, b = b, a
	}
	rLast, r := a, b
	tLast, t := gfPoly{0}, gfPoly{1}

	for 2*r.degree() >= capacity {
		rLastLast, tLastLast := rLast, tLast
		rLast, tLast = r, t
		if rLast.isZero() {
			return nil, nil, ErrCorrectionFailed
		}
		r = rLastLast
		q := gfPoly{0}
		inv := gfInv(rLast.coef(rLast.degree()))
		for r.degree() >= rLast.degree() && !r.isZero() {
			diff := r.degree() - rLast.degree()
			scale := gfMul(r.coef(r.degree()), inv)
			q = polyAdd(q, monomial(diff, scale))
			r = polyAdd(r, mulMonomial(rLast, diff, scale))
		}
		t = polyAdd(polyMul(q, tLast), tLastLast)

		if r.degree() >= rLast.degree() {
			return nil, nil, ErrCorrectionFailed
		}
	}

	c := t.coef(0)
	if c == 0 {
		return nil, nil, ErrCorrectionFailed
	}
	inv := gfInv(c)
	return polyScale(t, inv), polyScale(r, inv), nil
}

// errorLocations finds the roots of the error locator by Chien search
// and returns their inverses, the error location field elements.
func errorLocations(sigma gfPoly) ([]byte, error) {
	n := sigma.degree()
	if n == 1 {
		return []byte{sigma.coef(1)}, nil
	}
	out := make([]byte, 0, n)
	for i := 1; i < 256 && len(out) < n; i++ {
		if sigma.eval(byte(i)) == 0 {
			out = append(out, gfInv(byte(i)))
		}
	}
	if len(out) != n {
		return nil, ErrCorrectionFailed
	}
	return out, nil
}

// errorMagnitudes applies Forney's formula at each error location.
func errorMagnitudes(omega gfPoly, locations []byte) []byte {
	out := make([]byte, len(locations))
	for i, xi := range locations {
		xiInv := gfInv(xi)
		denom := byte(1)
		for j, xj := range locations {
			if i == j {
				continue
			}
			denom = gfMul(denom, gfMul(xj, xiInv)^1)
		}
		out[i] = gfMul(omega.eval(xiInv), gfInv(denom))
	}
	return out
}
