package common

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidSide = errors.New("invalid order side")

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts the canonical "Buy"/"Sell" tags and their lowercase forms.
func ParseSide(tag string) (Side, error) {
	switch tag {
	case "Buy", "buy":
		return Buy, nil
	case "Sell", "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, tag)
}

func (s Side) MarshalJSON() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSide, int(s))
	}
	return json.Marshal(s.String())
}

func (s *Side) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidSide, string(data))
	}
	side, err := ParseSide(tag)
	if err != nil {
		return err
	}
	*s = side
	return nil
}
