package reedsolomon

// gfPoly is a polynomial over GF(256), coefficients highest degree first
// with no leading zeros. The zero polynomial is the single byte 0.
type gfPoly []byte

func polyTrim(p gfPoly) gfPoly {
	i := 0
	for i < len(p)-1 && p[i] == 0 {
		i++
	}
	return p[i:]
}

func (p gfPoly) degree() int { return len(p) - 1 }

func (p gfPoly) isZero() bool { return len(p) == 1 && p[0] == 0 }

// coef returns the coefficient of x^degree.
func (p gfPoly) coef(degree int) byte { return p[len(p)-1-degree] }

// eval evaluates the polynomial at x by Horner's rule.
func (p gfPoly) eval(x byte) byte {
	if x == 0 {
		return p.coef(0)
	}
	r := p[0]
	for _, c := range p[1:] {
		r = gfMul(r, x) ^ c
	}
	return r
}

// polyAdd adds two polynomials (addition and subtraction coincide in
// GF(2^n)).
func polyAdd(a, b gfPoly) gfPoly {
	if a.isZero() {
		return b
	}
	if b.isZero() {
		return a
	}
	if len(a) < len(b) {
		a, b = b, a
	}
	out := make(gfPoly, len(a))
	copy(out, a)
	off := len(a) - len(b)
	for i, c := range b {
		out[off+i] ^= c
	}
	return polyTrim(out)
}

func polyMul(a, b gfPoly) gfPoly {
	if a.isZero() || b.isZero() {
		return gfPoly{0}
	}
	out := make(gfPoly, len(a)+len(b)-1)
	for i, ac := range a {
		if ac == 0 {
			continue
		}
		for j, bc := range b {
			out[i+j] ^= gfMul(ac, bc)
		}
	}
	return polyTrim(out)
}

func polyScale(p gfPoly, s byte) gfPoly {
	if s == 0 {
		return gfPoly{0}
	}
	out := make(gfPoly, len(p))
	for i, c := range p {
		out[i] = gfMul(c, s)
	}
	return out
}

// monomial returns c * x^degree.
func monomial(degree int, c byte) gfPoly {
	if c == 0 {
		return gfPoly{0}
	}
	out := make(gfPoly, degree+1)
	out[0] = c
	return out
}

// mulMonomial returns p * c * x^degree.
func mulMonomial(p gfPoly, degree int, c byte) gfPoly {
	if c == 0 || p.isZero() {
		return gfPoly{0}
	}
	out := make(gfPoly, len(p)+degree)
	for i, pc := range p {
		out[i] = gfMul(pc, c)
	}
	return polyTrim(out)
}

// polyMod returns the remainder of a divided by b.
func polyMod(a, b gfPoly) gfPoly {
	inv := gfInv(b.coef(b.degree()))
	rem := a
	for rem.degree() >= b.degree() && !rem.isZero() {
		diff := rem.degree() - b.degree()
		scale := gfMul(rem.coef(rem.degree()), inv)
		rem = polyAdd(rem, mulMonomial(b, diff, scale))
	}
	return rem
}
