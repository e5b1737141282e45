package service

import (
	"time"

	"github.com/cheew/terratherm/internal/models"
)

// Anti-windup bound on the integral accumulator, symmetric. Sized for gains
// in the Kp≈10 range so a saturated integral term stays comparable to the
// proportional term.
const pidIntegralBound = 100.0

// Minimum Δt between compute calls. Below this the derivative term would
// blow up, so the previous output is effectively held (P recomputed, I/D
// skipped via the floor).
const pidMinDt = time.Millisecond

// PID computes a 0..100 power level driving current temperature toward
// target. State carried across calls: integral accumulator, previous error,
// previous timestamp. Not safe for concurrent use; the control service owns
// one per output behind its lock.
type PID struct {
	gains    models.PIDGains
	integral float64
	prevErr  float64
	lastTime time.Time
}

func NewPID(g models.PIDGains) *PID {
	return &PID{gains: g}
}

// Gains returns the current gain triple.
func (p *PID) Gains() models.PIDGains { return p.gains }

// SetGains replaces the gain triple and resets the integral so a gain change
// cannot amplify previously accumulated error.
func (p *PID) SetGains(g models.PIDGains) {
	p.gains = g
	p.Reset()
}

// Reset zeroes the integral and previous error and clears the time baseline.
// Must be called whenever the setpoint source changes (mode switch).
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.lastTime = time.Time{}
}

// Compute returns the clamped power for the given temperatures at time now.
// The first call after a reset has no Δt baseline and yields the
// proportional term only.
func (p *PID) Compute(current, target float64, now time.Time) int {
	err := target - current

	var out float64
	if p.lastTime.IsZero() {
		out = p.gains.Kp * err
	} else {
		dt := now.Sub(p.lastTime)
		if dt < pidMinDt {
			dt = pidMinDt
		}
		dtSec := dt.Seconds()

		p.integral += err * dtSec
		if p.integral > pidIntegralBound {
			p.integral = pidIntegralBound
		} else if p.integral < -pidIntegralBound {
			p.integral = -pidIntegralBound
		}

		deriv := (err - p.prevErr) / dtSec
		out = p.gains.Kp*err + p.gains.Ki*p.integral + p.gains.Kd*deriv
	}

	p.prevErr = err
	p.lastTime = now

	return clampPower(int(out))
}

// clampPower bounds a power value to the actuator range.
func clampPower(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
