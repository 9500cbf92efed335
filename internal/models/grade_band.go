package models

// GradeBand maps a marks range onto a letter grade. Bands are seeded once
// and looked up whenever a result's marks are written.
type GradeBand struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Letter   string  `gorm:"size:4;uniqueIndex;not null" json:"letter"`
	MinMarks float64 `gorm:"not null" json:"min_marks"`
	MaxMarks float64 `gorm:"not null" json:"max_marks"`
}

// DefaultGradeBands returns the grading scale used when none has been configured.
func DefaultGradeBands() []GradeBand {
	return []GradeBand{
		{Letter: "A", MinMarks: 80, MaxMarks: 100},
		{Letter: "B", MinMarks: 70, MaxMarks: 79.99},
		{Letter: "C", MinMarks: 60, MaxMarks: 69.99},
		{Letter: "D", MinMarks: 50, MaxMarks: 59.99},
		{Letter: "E", MinMarks: 40, MaxMarks: 49.99},
		{Letter: "F", MinMarks: 0, MaxMarks: 39.99},
	}
}
