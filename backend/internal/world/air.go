package world

import (
	"github.com/go-gl/mathgl/mgl32"

	port "x-rigid/backend/internal/core/port/out/physics"
)

// maxDragFraction ограничивает торможение за шаг, чтобы скорость не меняла знак
const maxDragFraction = 0.9

// projectedArea - площадь проекции бокса на плоскость, перпендикулярную направлению
func projectedArea(half mgl32.Vec3, dir mgl32.Vec3) float32 {
	hx, hy, hz := half.X(), half.Y(), half.Z()
	return 4 * (hy*hz*abs32(dir.X()) + hx*hz*abs32(dir.Y()) + hx*hy*abs32(dir.Z()))
}

// airResistanceImpulse возвращает импульс сопротивления воздуха за шаг dt:
// F = 0.5 * rho * |v|^2 * Cd * A против направления скорости.
func airResistanceImpulse(body port.Body, drag, density, dt float32) mgl32.Vec3 {
	mass := body.Mass()
	if mass <= 0 || drag <= 0 || density <= 0 || dt <= 0 {
		return mgl32.Vec3{}
	}

	v := body.LinearVelocity()
	speed := v.Len()
	if speed == 0 {
		return mgl32.Vec3{}
	}
	dir := v.Mul(1 / speed)

	area := projectedArea(body.Shape().HalfExtents, dir)
	magnitude := 0.5 * density * speed * speed * drag * area * dt

	if limit := maxDragFraction * mass * speed; magnitude > limit {
		magnitude = limit
	}
	return dir.Mul(-magnitude)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
