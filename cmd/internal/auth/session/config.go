package session

import "fmt"

// Config tunes how device metadata is recorded.
type Config struct {
	// TitleMaxLen caps the stored device title (user agent), in runes.
	TitleMaxLen int
	// UnknownTitle is stored when the client sent no user agent.
	UnknownTitle string
}

func DefaultConfig() Config {
	return Config{
		TitleMaxLen:  256,
		UnknownTitle: "unknown device",
	}
}

func (c Config) Validate() error {
	if c.TitleMaxLen <= 0 {
		return fmt.Errorf("%w: title max len must be positive", ErrConfig)
	}
	if c.UnknownTitle == "" {
		return fmt.Errorf("%w: unknown title must be set", ErrConfig)
	}
	return nil
}
