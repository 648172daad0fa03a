package feedback

// Color is a display tier for a score.
type Color string

const (
	ColorGreen Color = "green"
	ColorAmber Color = "amber"
	ColorRed   Color = "red"
)

// Hex returns the RGB value used when rendering the tier.
func (c Color) Hex() string {
	switch c {
	case ColorGreen:
		return "#27ae60"
	case ColorAmber:
		return "#f39c12"
	default:
		return "#e74c3c"
	}
}

// Label names a score band.
func Label(score int) string {
	switch {
	case score >= 9:
		return "Excellent"
	case score >= 8:
		return "Very Good"
	case score >= 7:
		return "Good"
	case score >= 6:
		return "Average"
	case score >= 5:
		return "Below Average"
	default:
		return "Needs Improvement"
	}
}

// Tier returns the colour tier for a score.
func Tier(score int) Color {
	switch {
	case score >= 8:
		return ColorGreen
	case score >= 6:
		return ColorAmber
	default:
		return ColorRed
	}
}

// View is everything the renderers need for one result card.
type View struct {
	Question     string
	Transcript   string
	Score        int
	MaxScore     int
	Label        string
	Color        Color
	Strengths    []string
	Weaknesses   []string
	Improvements []string
	Overall      string
}

// Present derives a View from f. It copies the lists, so later changes to
// the View never reach f.
func Present(f Feedback, question, transcript string) View {
	c := f.Clone()
	return View{
		Question:     question,
		Transcript:   transcript,
		Score:        c.Score,
		MaxScore:     MaxScore,
		Label:        Label(c.Score),
		Color:        Tier(c.Score),
		Strengths:    c.Strengths,
		Weaknesses:   c.Weaknesses,
		Improvements: c.Improvements,
		Overall:      c.Overall,
	}
}
