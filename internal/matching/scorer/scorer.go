package scorer

import (
	"fmt"
	"math"

	"studymatch-workers/internal/models"
)

// Weights carries the relative importance of each compatibility factor.
// The five fields must sum to 1.0.
type Weights struct {
	Subject    float64
	Schedule   float64
	Experience float64
	StudyStyle float64
	Goals      float64
}

// DefaultWeights returns the production weight profile.
func DefaultWeights() Weights {
	return Weights{
		Subject:    0.30,
		Schedule:   0.25,
		Experience: 0.20,
		StudyStyle: 0.15,
		Goals:      0.10,
	}
}

// Validate checks that the weights sum to 1.0 within a small tolerance.
func (w Weights) Validate() error {
	sum := w.Subject + w.Schedule + w.Experience + w.StudyStyle + w.Goals
	if math.Abs(sum-1.0) > 0.001 {
		return fmt.Errorf("compatibility weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Result is the outcome of scoring one candidate against a requester.
type Result struct {
	CompatibilityScore int
	Factors            models.MatchFactors
	Reasons            []string
}

// Scorer computes compatibility scores between user profiles and between
// a user profile and a study group. It is pure and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// New returns a Scorer using the given weight profile.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// ScoreUsers computes the compatibility between two user profiles.
// Missing optional fields degrade to neutral defaults, never to an error.
func (s *Scorer) ScoreUsers(a, b *models.UserProfile) Result {
	subject := s.subjectFactorUsers(a, b)
	schedule := s.scheduleFactorUsers(a, b)
	experience := s.experienceFactor(a.ExperienceLevel, b.ExperienceLevel)
	style := s.styleFactor(a.StudyStyle, b.StudyStyle)
	goals := s.goalFactor(a.StudyGoals, b.StudyGoals)

	factors := models.MatchFactors{
		SubjectMatch:    subject,
		ScheduleMatch:   schedule,
		ExperienceMatch: experience,
		StudyStyleMatch: style,
		GoalMatch:       goals,
	}

	score := clampScore(roundInt(s.weightedSum(factors)))
	return Result{
		CompatibilityScore: score,
		Factors:            factors,
		Reasons:            buildReasons(score, factors, nil),
	}
}

// ScoreGroup computes the compatibility between a user and a study group.
// The weighted factor score is blended with the average pairwise
// compatibility against existing members and a group-size fit bonus.
func (s *Scorer) ScoreGroup(u *models.UserProfile, g *models.GroupProfile) Result {
	subject := s.subjectFactorGroup(u, g)
	schedule := s.scheduleFactorGroup(u, g)
	experience := s.experienceFactor(u.ExperienceLevel, g.ExperienceLevel)
	style := s.styleFactor(u.StudyStyle, g.StudyStyle)
	goals := s.goalFactor(u.StudyGoals, g.StudyGoals)

	factors := models.MatchFactors{
		SubjectMatch:    subject,
		ScheduleMatch:   schedule,
		ExperienceMatch: experience,
		StudyStyleMatch: style,
		GoalMatch:       goals,
	}

	raw := s.weightedSum(factors)
	memberAvg := s.averageMemberCompatibility(u, g)
	sizeBonus := groupSizeBonus(u.PreferredGroupSize, g.MemberCount+1)

	score := clampScore(roundInt(raw*0.8 + memberAvg*0.1 + sizeBonus*0.1))
	return Result{
		CompatibilityScore: score,
		Factors:            factors,
		Reasons:            buildReasons(score, factors, g),
	}
}

func (s *Scorer) weightedSum(f models.MatchFactors) float64 {
	return float64(f.SubjectMatch.Score)*s.weights.Subject +
		float64(f.ScheduleMatch.Score)*s.weights.Schedule +
		float64(f.ExperienceMatch.Score)*s.weights.Experience +
		float64(f.StudyStyleMatch.Score)*s.weights.StudyStyle +
		float64(f.GoalMatch.Score)*s.weights.Goals
}

func (s *Scorer) subjectFactorUsers(a, b *models.UserProfile) models.SubjectFactor {
	factor := models.SubjectFactor{
		Weight:         s.weights.Subject * 100,
		CommonSubjects: []string{},
	}
	if len(a.Subjects) == 0 || len(b.Subjects) == 0 {
		return factor
	}
	common := commonStrings(a.Subjects, b.Subjects)
	factor.CommonSubjects = common
	longest := len(a.Subjects)
	if len(b.Subjects) > longest {
		longest = len(b.Subjects)
	}
	factor.Score = roundInt(float64(len(common)) / float64(longest) * 100)
	return factor
}

func (s *Scorer) subjectFactorGroup(u *models.UserProfile, g *models.GroupProfile) models.SubjectFactor {
	factor := models.SubjectFactor{
		Weight:         s.weights.Subject * 100,
		CommonSubjects: []string{},
	}
	for _, subject := range u.Subjects {
		if subject == g.Subject {
			factor.Score = 100
			factor.CommonSubjects = []string{g.Subject}
			break
		}
	}
	return factor
}

func (s *Scorer) scheduleFactorUsers(a, b *models.UserProfile) models.ScheduleFactor {
	factor := models.ScheduleFactor{
		Weight:          s.weights.Schedule * 100,
		CommonTimeSlots: []string{},
	}
	totalSlots := 0
	for _, day := range models.Weekdays {
		for _, slot := range models.TimeSlots {
			if !a.Availability.At(day, slot) {
				continue
			}
			totalSlots++
			if b.Availability.At(day, slot) {
				factor.CommonTimeSlots = append(factor.CommonTimeSlots, fmt.Sprintf("%s-%s", day, slot))
			}
		}
	}
	if totalSlots == 0 {
		// No availability asserted is neutral, not a penalty.
		factor.Score = 50
		return factor
	}
	factor.Score = roundInt(float64(len(factor.CommonTimeSlots)) / float64(totalSlots) * 100)
	return factor
}

func (s *Scorer) scheduleFactorGroup(u *models.UserProfile, g *models.GroupProfile) models.ScheduleFactor {
	factor := models.ScheduleFactor{
		Weight:          s.weights.Schedule * 100,
		CommonTimeSlots: []string{},
	}
	if g.Schedule == nil {
		factor.Score = 75
		return factor
	}
	if u.Availability.At(g.Schedule.Day, g.Schedule.Slot) {
		factor.Score = 100
		factor.CommonTimeSlots = []string{fmt.Sprintf("%s-%s", g.Schedule.Day, g.Schedule.Slot)}
	}
	return factor
}

func (s *Scorer) experienceFactor(a, b models.ExperienceLevel) models.ExperienceFactor {
	factor := models.ExperienceFactor{Weight: s.weights.Experience * 100}
	switch {
	case a == b:
		factor.Score = 100
		factor.LevelCompatibility = "identical"
	case a == models.ExperienceMixed || b == models.ExperienceMixed:
		factor.Score = 85
		factor.LevelCompatibility = "flexible"
	default:
		distance := a.NumericLevel() - b.NumericLevel()
		if distance < 0 {
			distance = -distance
		}
		if distance == 1 {
			factor.Score = 70
			factor.LevelCompatibility = "adjacent"
		} else {
			factor.Score = 50
			factor.LevelCompatibility = "distant"
		}
	}
	return factor
}

func (s *Scorer) styleFactor(a, b models.StudyStyle) models.StyleFactor {
	factor := models.StyleFactor{Weight: s.weights.StudyStyle * 100}
	switch {
	case a == b:
		factor.Score = 100
		factor.StyleCompatibility = "identical"
	case a == models.StyleMixed || b == models.StyleMixed:
		factor.Score = 80
		factor.StyleCompatibility = "flexible"
	default:
		factor.Score = 60
		factor.StyleCompatibility = "different"
	}
	return factor
}

func (s *Scorer) goalFactor(a, b []models.StudyGoal) models.GoalFactor {
	factor := models.GoalFactor{
		Weight:      s.weights.Goals * 100,
		CommonGoals: []models.StudyGoal{},
	}
	if len(a) == 0 || len(b) == 0 {
		factor.Score = 50
		return factor
	}
	common := commonGoals(a, b)
	factor.CommonGoals = common
	if len(common) == 0 {
		factor.Score = 30
		return factor
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	factor.Score = roundInt(float64(len(common)) / float64(longest) * 100)
	return factor
}

// averageMemberCompatibility is the mean pairwise score between the user
// and every scoreable existing member, defaulting to a neutral 75 when the
// group carries no member profiles.
func (s *Scorer) averageMemberCompatibility(u *models.UserProfile, g *models.GroupProfile) float64 {
	total := 0
	scored := 0
	for i := range g.Members {
		member := &g.Members[i]
		if !member.IsComplete() {
			continue
		}
		total += s.ScoreUsers(u, member).CompatibilityScore
		scored++
	}
	if scored == 0 {
		return 75
	}
	return float64(total) / float64(scored)
}

// groupSizeBonus rewards groups whose size after joining sits near the
// midpoint of the user's preferred bracket, dropping linearly away from it.
func groupSizeBonus(preferred models.GroupSize, futureSize int) float64 {
	distance := futureSize - preferred.Midpoint()
	if distance < 0 {
		distance = -distance
	}
	bonus := 100 - 15*distance
	if bonus < 0 {
		return 0
	}
	return float64(bonus)
}

func commonStrings(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		seen[v] = true
	}
	common := []string{}
	for _, v := range a {
		if seen[v] {
			common = append(common, v)
		}
	}
	return common
}

func commonGoals(a, b []models.StudyGoal) []models.StudyGoal {
	seen := make(map[models.StudyGoal]bool, len(b))
	for _, v := range b {
		seen[v] = true
	}
	common := []models.StudyGoal{}
	for _, v := range a {
		if seen[v] {
			common = append(common, v)
		}
	}
	return common
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
