package permission

import (
	"errors"
	"sync"
)

// MaxFlags is the number of distinct flags a single domain can declare.
const MaxFlags = 64

// Domain names the resource kind a policy governs.
type Domain string

const (
	DomainBoard   Domain = "board"
	DomainProject Domain = "project"
)

// Policy maps flag names to bit positions within one domain.
// Bits are assigned in registration order and are stable for the lifetime
// of the process. A policy must be frozen before it is used for validation.
type Policy struct {
	domain Domain

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	all       Mask
	frozen    bool
}

// NewPolicy creates an empty, unfrozen [Policy] for domain.
func NewPolicy(domain Domain) (*Policy, error) {
	if domain == "" {
		return nil, errors.New("policy domain cannot be empty")
	}

	return &Policy{
		domain:    domain,
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}, nil
}

// Register assigns the next available bit to the named flag and returns it.
// Must be called before [Policy.Freeze].
func (p *Policy) Register(name string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frozen {
		return -1, ErrPolicyFrozen
	}

	if name == "" {
		return -1, errors.New("flag name cannot be empty")
	}

	if _, exists := p.nameToBit[name]; exists {
		return -1, errors.New("flag already registered")
	}

	nextBit := len(p.nameToBit)
	if nextBit >= MaxFlags {
		return -1, errors.New("flag limit exceeded")
	}

	p.nameToBit[name] = nextBit
	p.bitToName[nextBit] = name
	p.all |= 1 << nextBit

	return nextBit, nil
}

// Freeze prevents further registrations.
func (p *Policy) Freeze() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = true
}

// Frozen reports whether the policy accepts no more flags.
func (p *Policy) Frozen() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frozen
}

func (p *Policy) Domain() Domain {
	return p.domain
}

// Bit returns the bit index for the named flag, or false if not registered.
func (p *Policy) Bit(name string) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	bit, ok := p.nameToBit[name]
	return bit, ok
}

// Name returns the flag name for the given bit index, or false if unassigned.
func (p *Policy) Name(bit int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.bitToName[bit]
	return name, ok
}

// Flag returns the single-bit mask for the named flag.
func (p *Policy) Flag(name string) (Mask, bool) {
	bit, ok := p.Bit(name)
	if !ok {
		return 0, false
	}
	return Mask(1) << bit, true
}

// Count returns the number of registered flags.
func (p *Policy) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nameToBit)
}

// All returns the OR of every flag the domain declares.
func (p *Policy) All() Mask {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.all
}

// IsValid reports whether m is non-zero and carries no bit outside the
// domain's flags.
func (p *Policy) IsValid(m Mask) bool {
	all := p.All()
	return m&^all == 0 && m&all != 0
}

// Validate returns a [*MaskError] naming field and domain when m is not valid.
func (p *Policy) Validate(field string, m Mask) error {
	if p.IsValid(m) {
		return nil
	}
	return &MaskError{Field: field, Domain: p.domain, Mask: m, err: ErrInvalidPermissionMask}
}

// RoleRules relaxes or tightens [Policy.ValidateRole].
type RoleRules struct {
	// AllowEmptyDenied accepts a zero denied mask as "deny nothing".
	AllowEmptyDenied bool
	// RejectOverlap fails roles that grant and deny the same flag.
	RejectOverlap bool
}

// ValidateRole checks a role's granted and denied masks independently; both
// must be valid masks of the domain.
func (p *Policy) ValidateRole(granted, denied Mask, rules RoleRules) error {
	if err := p.Validate("granted", granted); err != nil {
		return err
	}
	if denied != 0 || !rules.AllowEmptyDenied {
		if err := p.Validate("denied", denied); err != nil {
			return err
		}
	}
	if rules.RejectOverlap && granted&denied != 0 {
		return &MaskError{Field: "denied", Domain: p.domain, Mask: granted & denied, err: ErrPermissionOverlap}
	}
	return nil
}

// MaskOf folds the named flags into one mask.
func (p *Policy) MaskOf(names ...string) (Mask, error) {
	masks := make([]Mask, 0, len(names))
	for _, name := range names {
		flag, ok := p.Flag(name)
		if !ok {
			return 0, &FlagError{Domain: p.domain, Name: name}
		}
		masks = append(masks, flag)
	}
	return Combine(masks...), nil
}

// Names returns the flag names set in m, in bit order. Bits the domain does
// not declare are skipped.
func (p *Policy) Names(m Mask) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]string, 0, m.Count())
	for bit := 0; bit < MaxFlags; bit++ {
		if !m.HasBit(bit) {
			continue
		}
		if name, ok := p.bitToName[bit]; ok {
			out = append(out, name)
		}
	}
	return out
}
