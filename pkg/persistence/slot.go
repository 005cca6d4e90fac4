package persistence

import (
	"errors"
	"fmt"

	"github.com/lockline/lockline-go/pkg/wire"
)

// Store layout.
const (
	// CredentialAddr is where the controller keeps the credential.
	CredentialAddr int64 = 0x0090

	// FlagAddr is where the panel keeps the provisioned flag.
	FlagAddr int64 = 0x22

	// ProvisionedValue marks a provisioned panel.
	ProvisionedValue byte = 0x05

	// SlotSize is the credential digits plus one check byte.
	SlotSize = wire.CredentialLength + 1
)

// Slot errors.
var (
	// ErrEmptySlot is returned when no credential has been written.
	ErrEmptySlot = errors.New("persistence: credential slot empty")

	// ErrStaleSlot is returned when the check byte does not match the
	// digits, as after a write torn by power loss.
	ErrStaleSlot = errors.New("persistence: credential slot stale")
)

// CredentialSlot is a credential stored at a fixed address.
type CredentialSlot struct {
	mem  Memory
	addr int64
}

// NewCredentialSlot returns the slot at addr in mem.
func NewCredentialSlot(mem Memory, addr int64) *CredentialSlot {
	return &CredentialSlot{mem: mem, addr: addr}
}

// Addr returns the slot address.
func (s *CredentialSlot) Addr() int64 {
	return s.addr
}

// Read returns the stored credential.
func (s *CredentialSlot) Read() (wire.Credential, error) {
	var buf [SlotSize]byte
	if _, err := s.mem.ReadAt(buf[:], s.addr); err != nil {
		return wire.Credential{}, fmt.Errorf("read credential slot: %w", err)
	}

	erased := true
	for _, b := range buf {
		if b != ErasedByte {
			erased = false
			break
		}
	}
	if erased {
		return wire.Credential{}, ErrEmptySlot
	}

	var digits [wire.CredentialLength]byte
	copy(digits[:], buf[:wire.CredentialLength])
	c := wire.DecodeCredential(digits)
	if buf[wire.CredentialLength] != checkByte(c) || !c.Valid() {
		return wire.Credential{}, ErrStaleSlot
	}
	return c, nil
}

// Write stores c. Invalid credentials are refused without touching the
// store.
func (s *CredentialSlot) Write(c wire.Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var buf [SlotSize]byte
	digits := wire.EncodeCredential(c)
	copy(buf[:], digits[:])
	buf[wire.CredentialLength] = checkByte(c)

	if _, err := s.mem.WriteAt(buf[:], s.addr); err != nil {
		return fmt.Errorf("write credential slot: %w", err)
	}
	return nil
}

// Erase clears the slot.
func (s *CredentialSlot) Erase() error {
	buf := make([]byte, SlotSize)
	for i := range buf {
		buf[i] = ErasedByte
	}
	if _, err := s.mem.WriteAt(buf, s.addr); err != nil {
		return fmt.Errorf("erase credential slot: %w", err)
	}
	return nil
}

func checkByte(c wire.Credential) byte {
	sum := byte(0xA5)
	for i, d := range c {
		sum += d * byte(i+1)
	}
	return sum
}

// ProvisionFlag is the panel's first-boot marker.
type ProvisionFlag struct {
	mem  Memory
	addr int64
}

// NewProvisionFlag returns the flag at addr in mem.
func NewProvisionFlag(mem Memory, addr int64) *ProvisionFlag {
	return &ProvisionFlag{mem: mem, addr: addr}
}

// IsSet reports whether the panel has been provisioned.
func (f *ProvisionFlag) IsSet() (bool, error) {
	var b [1]byte
	if _, err := f.mem.ReadAt(b[:], f.addr); err != nil {
		return false, fmt.Errorf("read provision flag: %w", err)
	}
	return b[0] == ProvisionedValue, nil
}

// Set marks the panel provisioned.
func (f *ProvisionFlag) Set() error {
	if _, err := f.mem.WriteAt([]byte{ProvisionedValue}, f.addr); err != nil {
		return fmt.Errorf("write provision flag: %w", err)
	}
	return nil
}

// Clear returns the panel to first boot.
func (f *ProvisionFlag) Clear() error {
	if _, err := f.mem.WriteAt([]byte{ErasedByte}, f.addr); err != nil {
		return fmt.Errorf("clear provision flag: %w", err)
	}
	return nil
}
