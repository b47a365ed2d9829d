package sensor

import "sync"

// Sim is a scriptable sensor. The zero value is unusable, use NewSim.
type Sim struct {
	mu sync.Mutex

	codes  []uint16
	format Format
	bus    BusConfig

	// Fault injection knobs.
	RejectCodes     bool   // refuse requested codes, answer with codes[0]
	AnswerCode      uint16 // when non-zero, always answer with this code
	ForceInterlaced bool
	StreamErr       error // returned by SetStream(true)
	PowerErr        error // returned by SetPower(true)

	Streaming  bool
	PowerCount int // +1 on power on, -1 on power off
}

func NewSim(codes []uint16, f Format, bus BusConfig) *Sim {
	return &Sim{codes: codes, format: f, bus: bus}
}

func (s *Sim) EnumWireCode(index int) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.codes) {
		return 0, ErrNoMoreCodes
	}
	return s.codes[index], nil
}

func (s *Sim) GetFormat() (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format, nil
}

func (s *Sim) SetFormat(f Format, try bool) (Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := f
	if s.AnswerCode != 0 {
		out.Code = s.AnswerCode
	} else if s.RejectCodes || !s.supports(f.Code) {
		out.Code = s.codes[0]
	}
	if s.ForceInterlaced {
		out.Interlaced = true
	}
	if out.Width == 0 || out.Height == 0 {
		out.Width, out.Height = s.format.Width, s.format.Height
	}

	if !try {
		s.format = out
	}
	return out, nil
}

func (s *Sim) SetStream(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on && s.StreamErr != nil {
		return s.StreamErr
	}
	s.Streaming = on
	return nil
}

func (s *Sim) SetPower(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		if s.PowerErr != nil {
			return s.PowerErr
		}
		s.PowerCount++
	} else {
		s.PowerCount--
	}
	return nil
}

func (s *Sim) BusConfig() (BusConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bus, nil
}

func (s *Sim) supports(code uint16) bool {
	for _, c := range s.codes {
		if c == code {
			return true
		}
	}
	return false
}
