package launcher

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/user-none/emweb/emulator"
)

type recordingSender struct {
	commands []emulator.Command
	err      error
}

func (r *recordingSender) SendCommand(cmd emulator.Command) error {
	if r.err != nil {
		return r.err
	}
	r.commands = append(r.commands, cmd)
	return nil
}

func TestGameFocus(t *testing.T) {
	sender := &recordingSender{}
	focus := NewGameFocus(sender, false)

	assert.NoError(t, focus.Disable())
	assert.Empty(t, sender.commands)

	assert.NoError(t, focus.Enable())
	assert.NoError(t, focus.Enable())
	assert.True(t, focus.Enabled())
	assert.Equal(t, []emulator.Command{emulator.CommandGameFocusToggle}, sender.commands)

	assert.NoError(t, focus.Disable())
	assert.False(t, focus.Enabled())
	assert.Len(t, sender.commands, 2)
}

func TestGameFocusSendFailure(t *testing.T) {
	sender := &recordingSender{err: errors.New("not ready")}
	focus := NewGameFocus(sender, false)

	assert.Error(t, focus.Enable())
	assert.False(t, focus.Enabled())
}
