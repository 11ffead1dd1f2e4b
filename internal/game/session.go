package game

import "meteor-dodge/internal/content"

// State is the top level game state.
type State uint8

const (
	StateWelcome State = iota
	StatePlaying
	StatePaused
	StateGameOver
)

// String returns the state name used in snapshots and logs.
func (s State) String() string {
	switch s {
	case StateWelcome:
		return "welcome"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateGameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Session tracks score, lives, the level timer and the boundary warning for
// one run. It decides whether simulation time flows at all.
type Session struct {
	StartLives int

	state       State
	score       int
	lives       int
	levelPassed bool

	levelElapsed  float64
	levelDuration float64
	levelScale    float64
	timerRunning  bool

	warningIntensity float64
	warningMessage   string

	// Callbacks, invoked inside the tick
	OnStateChange func(from, to State)
	OnLevelPassed func()
}

// NewSession creates a session on the welcome screen.
func NewSession(startLives int) *Session {
	if startLives <= 0 {
		startLives = 3
	}
	s := &Session{StartLives: startLives}
	s.Reset()
	return s
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if from != to && s.OnStateChange != nil {
		s.OnStateChange(from, to)
	}
}

// Reset restores score, lives, timer and warning. The state is unchanged.
func (s *Session) Reset() {
	s.score = 0
	s.lives = s.StartLives
	s.levelPassed = false

	s.levelElapsed = 0
	s.levelDuration = 0
	s.levelScale = 1
	s.timerRunning = false

	s.warningIntensity = 0
	s.warningMessage = ""
}

// Play starts a fresh run.
func (s *Session) Play() {
	s.Reset()
	s.setState(StatePlaying)
}

// Pause is only possible while playing.
func (s *Session) Pause() bool {
	if s.state != StatePlaying {
		return false
	}
	s.setState(StatePaused)
	return true
}

// Resume continues a paused run.
func (s *Session) Resume() bool {
	if s.state != StatePaused {
		return false
	}
	s.setState(StatePlaying)
	return true
}

// NextLevel clears the level passed flag so the next level can run.
func (s *Session) NextLevel() bool {
	if !s.levelPassed {
		return false
	}
	s.levelPassed = false
	return true
}

// BackToMenu resets the run and returns to the welcome screen.
func (s *Session) BackToMenu() {
	s.Reset()
	s.setState(StateWelcome)
}

// StartLevelTimer begins timing level.
func (s *Session) StartLevelTimer(level content.Level) {
	s.levelDuration = level.Duration
	s.levelElapsed = 0
	s.levelScale = 1
	s.timerRunning = true
	s.levelPassed = false
}

// SetLevelTimeScale sets how fast the level timer runs.
func (s *Session) SetLevelTimeScale(f float64) { s.levelScale = f }

// AddScore adds points.
func (s *Session) AddScore(points int) { s.score += points }

// PlayerHit costs a life. Ignored once the game is over.
func (s *Session) PlayerHit() {
	if s.state == StateGameOver {
		return
	}
	s.lives--
	if s.lives <= 0 {
		s.setState(StateGameOver)
	}
}

// ForceGameOver ends the run immediately. Only a running game can end.
func (s *Session) ForceGameOver() bool {
	if s.state != StatePlaying {
		return false
	}
	s.setState(StateGameOver)
	return true
}

// SetBoundaryWarning stores the warning intensity, clamped to [0,1].
func (s *Session) SetBoundaryWarning(intensity float64) {
	s.warningIntensity = clamp01(intensity)
}

// SetBoundaryDirection stores the warning message.
func (s *Session) SetBoundaryDirection(msg string) { s.warningMessage = msg }

// Update advances the level timer by dt, already scaled by TimeScale.
func (s *Session) Update(dt float64) {
	if s.state != StatePlaying || !s.timerRunning || s.levelDuration <= 0 {
		return
	}

	s.levelElapsed += dt * s.levelScale
	if s.Progress() >= 1 {
		s.timerRunning = false
		s.levelPassed = true
		if s.OnLevelPassed != nil {
			s.OnLevelPassed()
		}
	}
}

// TimeScale is 1 while the simulation runs and 0 otherwise.
func (s *Session) TimeScale() float64 {
	if s.state != StatePlaying || s.levelPassed {
		return 0
	}
	return 1
}

// Progress is the level completion in [0,1].
func (s *Session) Progress() float64 {
	if s.levelDuration <= 0 {
		return 0
	}
	return clamp01(s.levelElapsed / s.levelDuration)
}

func (s *Session) State() State               { return s.state }
func (s *Session) Score() int                 { return s.score }
func (s *Session) Lives() int                 { return s.lives }
func (s *Session) LevelPassed() bool          { return s.levelPassed }
func (s *Session) LevelTimeScale() float64    { return s.levelScale }
func (s *Session) Warning() (float64, string) { return s.warningIntensity, s.warningMessage }
