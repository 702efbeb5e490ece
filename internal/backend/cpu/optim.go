package cpu

import (
	"math"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func sgdUpdate[E tensor.Float](c *call) error {
	lr, momentum, mu := E(c.float()), kernels.MomentumKind(c.int()), E(c.float())
	decay, lambda := kernels.DecayKind(c.int()), E(c.float())
	param, grad, velocity := slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	c.forEach(func(i int) {
		p, g := param[i], grad[i]
		if decay == kernels.DecayL2 {
			g += lambda * p
		}
		switch momentum {
		case kernels.MomentumClassic:
			velocity[i] = g + mu*velocity[i]
			g = velocity[i] * lr
		case kernels.MomentumNesterov:
			velocity[i] = g + mu*velocity[i]
			g = (g + mu*velocity[i]) * lr
		default:
			g *= lr
		}
		if decay == kernels.DecayDecoupled {
			g += lambda * lr * p
		}
		param[i] = p - g
	})
	return nil
}

func rmspropUpdate[E tensor.Float](c *call) error {
	lr, alpha, eps := E(c.float()), E(c.float()), E(c.float())
	centered, momentum, mu := c.int() != 0, c.int() != 0, E(c.float())
	decay, lambda := kernels.DecayKind(c.int()), E(c.float())
	param, grad, squareAvg, gradAvg, buf := slice[E](c), slice[E](c), slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	c.forEach(func(i int) {
		p, g := param[i], grad[i]
		if decay == kernels.DecayL2 {
			g += lambda * p
		}
		sa := squareAvg[i]
		sa += (1 - alpha) * (g*g - sa)
		squareAvg[i] = sa

		var avg E
		if centered {
			ga := gradAvg[i]
			ga += (1 - alpha) * (g - ga)
			gradAvg[i] = ga
			avg = E(math.Sqrt(float64(sa - ga*ga + eps)))
		} else {
			avg = E(math.Sqrt(float64(sa + eps)))
		}
		g /= avg

		if momentum {
			buf[i] = buf[i]*mu + g
			g = buf[i] * lr
		} else {
			g *= lr
		}
		if decay == kernels.DecayDecoupled {
			g += lambda * lr * p
		}
		param[i] = p - g
	})
	return nil
}
