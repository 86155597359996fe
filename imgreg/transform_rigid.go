package imgreg

// RigidNoRotation is the simplest Transform variant: translation only.
// transform(s) = s + translation (spec §4.C). Defined everywhere.
type RigidNoRotation struct {
	changeNotifier
	Translation Pt
	extent      Rectangle
}

// NewRigidNoRotation builds a translation-only transform.
func NewRigidNoRotation(translation Pt) *RigidNoRotation {
	return &RigidNoRotation{Translation: translation}
}

// SetSourceExtent records the known source-raster bounds so TargetBBox and
// SourceBBox have something concrete to report — these parametric
// transforms have no intrinsic bounded domain otherwise.
func (t *RigidNoRotation) SetSourceExtent(r Rectangle) { t.extent = r }

func (t *RigidNoRotation) TransformPoints(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		out[i] = Pt{p[0] + t.Translation[0], p[1] + t.Translation[1]}
	}
	return out
}

func (t *RigidNoRotation) InverseTransformPoints(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		out[i] = Pt{p[0] - t.Translation[0], p[1] - t.Translation[1]}
	}
	return out
}

func (t *RigidNoRotation) TranslateTarget(delta Pt) {
	t.Translation = Pt{t.Translation[0] + delta[0], t.Translation[1] + delta[1]}
	t.notify()
}

func (t *RigidNoRotation) TranslateSource(delta Pt) {
	t.Translation = Pt{t.Translation[0] - delta[0], t.Translation[1] - delta[1]}
	t.notify()
}

func (t *RigidNoRotation) Scale(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.extent = t.extent.ScaleOnOrigin(f)
	t.notify()
}

func (t *RigidNoRotation) ScaleSource(f float64) { t.extent = t.extent.ScaleOnOrigin(f); t.notify() }

func (t *RigidNoRotation) ScaleTarget(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.notify()
}

func (t *RigidNoRotation) RotateTarget(angleDeg float64, center Pt) {
	rotated := rotatePoint(Pt{t.Translation[0] + center[0], t.Translation[1] + center[1]}, angleDeg, center)
	t.Translation = Pt{rotated[0] - center[0], rotated[1] - center[1]}
	t.notify()
}

func (t *RigidNoRotation) TargetBBox() Rectangle {
	return Rectangle{MinY: t.extent.MinY + t.Translation[1], MinX: t.extent.MinX + t.Translation[0], Height: t.extent.Height, Width: t.extent.Width}
}

func (t *RigidNoRotation) SourceBBox() Rectangle { return t.extent }

// Rigid is rotation + translation around an explicit source-space rotation
// centre (spec §4.C): transform(s) = R(angle)*(s - center) + center +
// translation. Defined everywhere; inverse is the exact analytic inverse.
type Rigid struct {
	changeNotifier
	Translation         Pt
	SourceRotationCenter Pt
	AngleDegrees        float64
	extent              Rectangle
}

// NewRigid builds a rigid transform from its parameters.
func NewRigid(translation, sourceRotationCenter Pt, angleDegrees float64) *Rigid {
	return &Rigid{Translation: translation, SourceRotationCenter: sourceRotationCenter, AngleDegrees: angleDegrees}
}

func (t *Rigid) SetSourceExtent(r Rectangle) { t.extent = r }

func (t *Rigid) TransformPoints(pts []Pt) []Pt {
	rotated := rotatePoints(pts, t.AngleDegrees, t.SourceRotationCenter)
	out := make([]Pt, len(rotated))
	for i, p := range rotated {
		out[i] = Pt{p[0] + t.Translation[0], p[1] + t.Translation[1]}
	}
	return out
}

func (t *Rigid) InverseTransformPoints(pts []Pt) []Pt {
	shifted := make([]Pt, len(pts))
	for i, p := range pts {
		shifted[i] = Pt{p[0] - t.Translation[0], p[1] - t.Translation[1]}
	}
	return rotatePoints(shifted, -t.AngleDegrees, t.SourceRotationCenter)
}

func (t *Rigid) TranslateTarget(delta Pt) {
	t.Translation = Pt{t.Translation[0] + delta[0], t.Translation[1] + delta[1]}
	t.notify()
}

func (t *Rigid) TranslateSource(delta Pt) {
	t.SourceRotationCenter = Pt{t.SourceRotationCenter[0] + delta[0], t.SourceRotationCenter[1] + delta[1]}
	t.notify()
}

func (t *Rigid) Scale(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.SourceRotationCenter = Pt{t.SourceRotationCenter[0] * f, t.SourceRotationCenter[1] * f}
	t.extent = t.extent.ScaleOnOrigin(f)
	t.notify()
}

func (t *Rigid) ScaleSource(f float64) {
	t.SourceRotationCenter = Pt{t.SourceRotationCenter[0] * f, t.SourceRotationCenter[1] * f}
	t.extent = t.extent.ScaleOnOrigin(f)
	t.notify()
}

func (t *Rigid) ScaleTarget(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.notify()
}

func (t *Rigid) RotateTarget(angleDeg float64, center Pt) {
	newCenter := rotatePoint(t.SourceRotationCenter, angleDeg, center)
	newTranslation := rotatePoint(Pt{t.SourceRotationCenter[0] + t.Translation[0], t.SourceRotationCenter[1] + t.Translation[1]}, angleDeg, center)
	t.SourceRotationCenter = newCenter
	t.Translation = Pt{newTranslation[0] - newCenter[0], newTranslation[1] - newCenter[1]}
	t.AngleDegrees += angleDeg
	t.notify()
}

func (t *Rigid) TargetBBox() Rectangle {
	corners := rectangleCorners(t.extent)
	return boundsOfPoints(t.TransformPoints(corners))
}

func (t *Rigid) SourceBBox() Rectangle { return t.extent }

// CenteredSimilarity adds a uniform scalar to Rigid: transform(s) =
// R(angle)*(s - center)*scalar + center + translation (spec §4.C).
type CenteredSimilarity struct {
	changeNotifier
	Translation          Pt
	SourceRotationCenter Pt
	AngleDegrees         float64
	Scalar               float64
	extent               Rectangle
}

// NewCenteredSimilarity builds a similarity transform from its parameters.
func NewCenteredSimilarity(translation, sourceRotationCenter Pt, angleDegrees, scalar float64) *CenteredSimilarity {
	return &CenteredSimilarity{Translation: translation, SourceRotationCenter: sourceRotationCenter, AngleDegrees: angleDegrees, Scalar: scalar}
}

func (t *CenteredSimilarity) SetSourceExtent(r Rectangle) { t.extent = r }

func (t *CenteredSimilarity) TransformPoints(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		scaled := Pt{(p[0] - t.SourceRotationCenter[0]) * t.Scalar, (p[1] - t.SourceRotationCenter[1]) * t.Scalar}
		rotated := rotatePoint(scaled, t.AngleDegrees, Pt{0, 0})
		out[i] = Pt{
			rotated[0] + t.SourceRotationCenter[0] + t.Translation[0],
			rotated[1] + t.SourceRotationCenter[1] + t.Translation[1],
		}
	}
	return out
}

func (t *CenteredSimilarity) InverseTransformPoints(pts []Pt) []Pt {
	out := make([]Pt, len(pts))
	for i, p := range pts {
		shifted := Pt{
			p[0] - t.Translation[0] - t.SourceRotationCenter[0],
			p[1] - t.Translation[1] - t.SourceRotationCenter[1],
		}
		rotated := rotatePoint(shifted, -t.AngleDegrees, Pt{0, 0})
		out[i] = Pt{
			rotated[0]/t.Scalar + t.SourceRotationCenter[0],
			rotated[1]/t.Scalar + t.SourceRotationCenter[1],
		}
	}
	return out
}

func (t *CenteredSimilarity) TranslateTarget(delta Pt) {
	t.Translation = Pt{t.Translation[0] + delta[0], t.Translation[1] + delta[1]}
	t.notify()
}

func (t *CenteredSimilarity) TranslateSource(delta Pt) {
	t.SourceRotationCenter = Pt{t.SourceRotationCenter[0] + delta[0], t.SourceRotationCenter[1] + delta[1]}
	t.notify()
}

func (t *CenteredSimilarity) Scale(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.SourceRotationCenter = Pt{t.SourceRotationCenter[0] * f, t.SourceRotationCenter[1] * f}
	t.extent = t.extent.ScaleOnOrigin(f)
	t.notify()
}

func (t *CenteredSimilarity) ScaleSource(f float64) {
	t.Scalar *= f
	t.extent = t.extent.ScaleOnOrigin(f)
	t.notify()
}

func (t *CenteredSimilarity) ScaleTarget(f float64) {
	t.Translation = Pt{t.Translation[0] * f, t.Translation[1] * f}
	t.Scalar *= f
	t.notify()
}

func (t *CenteredSimilarity) RotateTarget(angleDeg float64, center Pt) {
	newCenter := rotatePoint(t.SourceRotationCenter, angleDeg, center)
	newTranslation := rotatePoint(Pt{t.SourceRotationCenter[0] + t.Translation[0], t.SourceRotationCenter[1] + t.Translation[1]}, angleDeg, center)
	t.SourceRotationCenter = newCenter
	t.Translation = Pt{newTranslation[0] - newCenter[0], newTranslation[1] - newCenter[1]}
	t.AngleDegrees += angleDeg
	t.notify()
}

func (t *CenteredSimilarity) TargetBBox() Rectangle {
	corners := rectangleCorners(t.extent)
	return boundsOfPoints(t.TransformPoints(corners))
}

func (t *CenteredSimilarity) SourceBBox() Rectangle { return t.extent }

func rectangleCorners(r Rectangle) []Pt {
	return []Pt{
		{r.MinX, r.MinY},
		{r.MaxX(), r.MinY},
		{r.MaxX(), r.MaxY()},
		{r.MinX, r.MaxY()},
	}
}
