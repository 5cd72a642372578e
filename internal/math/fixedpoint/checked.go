package fixedpoint

import "github.com/holiman/uint256"

// Checked chains fixed point operations and keeps the first error. Once Err
// is set every further operation is skipped and returns zero.
type Checked struct {
	Err error
}

func (c *Checked) apply(f func() (*uint256.Int, error)) *uint256.Int {
	if c.Err != nil {
		return new(uint256.Int)
	}
	v, err := f()
	if err != nil {
		c.Err = err
		return new(uint256.Int)
	}
	return v
}

func (c *Checked) Add(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return Add(a, b) })
}

func (c *Checked) Sub(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return Sub(a, b) })
}

func (c *Checked) Mul(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return Mul(a, b) })
}

func (c *Checked) Div(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return Div(a, b) })
}

func (c *Checked) DivRoundUp(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return DivRoundUp(a, b) })
}

func (c *Checked) MulDown(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return MulDown(a, b) })
}

func (c *Checked) MulUp(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return MulUp(a, b) })
}

func (c *Checked) DivDown(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return DivDown(a, b) })
}

func (c *Checked) DivUp(a, b *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return DivUp(a, b) })
}

func (c *Checked) PowUp(x, y *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return PowUp(x, y) })
}

func (c *Checked) PowDown(x, y *uint256.Int) *uint256.Int {
	return c.apply(func() (*uint256.Int, error) { return PowDown(x, y) })
}

// Result returns v, or the first recorded error.
func (c *Checked) Result(v *uint256.Int) (*uint256.Int, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return v, nil
}
