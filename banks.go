package stepbox

import "unicode"

// NumBanks is the number of pattern banks, named 'A' to 'D'.
const NumBanks = 4

// Banks stores pattern snapshots in the memory slots A-D. Bank names are
// case insensitive; names outside A-D are ignored by every method. Banks is
// not safe for concurrent use.
type Banks struct {
	slots  [NumBanks]Pattern
	filled [NumBanks]bool
}

func bankIndex(bank rune) (int, bool) {
	i := int(unicode.ToUpper(bank) - 'A')
	return i, i >= 0 && i < NumBanks
}

// Store saves a copy of the pattern to the bank.
func (b *Banks) Store(bank rune, p Pattern) {
	if i, ok := bankIndex(bank); ok {
		b.slots[i] = p.Copy()
		b.filled[i] = true
	}
}

// Recall returns a copy of the pattern in the bank; ok is false if the bank
// is empty.
func (b *Banks) Recall(bank rune) (p Pattern, ok bool) {
	i, ok := bankIndex(bank)
	if !ok || !b.filled[i] {
		return Pattern{}, false
	}
	return b.slots[i].Copy(), true
}

// Filled tells if the bank has a pattern stored.
func (b *Banks) Filled(bank rune) bool {
	i, ok := bankIndex(bank)
	return ok && b.filled[i]
}

// Clear empties a bank.
func (b *Banks) Clear(bank rune) {
	if i, ok := bankIndex(bank); ok {
		b.slots[i] = Pattern{}
		b.filled[i] = false
	}
}

// ClearAll empties all banks.
func (b *Banks) ClearAll() {
	*b = Banks{}
}
