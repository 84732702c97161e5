package main

import (
	"github.com/chazu/grue/saves"
	"github.com/chazu/grue/zdebug"
	"github.com/chazu/grue/zmachine"
	"github.com/chazu/grue/zterm"
)

// debugHost wraps the terminal so that $-prefixed lines are answered by the
// debugger instead of being handed to the game.
type debugHost struct {
	*zterm.Terminal
	debugger *zdebug.Debugger
}

func (h *debugHost) ReadLine(max int) (string, bool) {
	for {
		line, ok := h.Terminal.ReadLine(max)
		if !ok {
			return "", false
		}
		if h.debugger == nil || !h.debugger.IsCommand(line) {
			return line, ok
		}
		h.debugger.Handle(line)
	}
}

// storeSaver connects the engine's save/restore hooks to the save store,
// prompting for slot names through the terminal.
type storeSaver struct {
	store       *saves.Store
	term        *zterm.Terminal
	machine     *zmachine.Machine
	defaultName string
}

func (s *storeSaver) story() saves.StoryID {
	h := s.machine.Header()
	return saves.StoryID{
		Release:  h.Release,
		Serial:   string(h.Serial[:]),
		Checksum: h.Checksum,
	}
}

func (s *storeSaver) Save(data []byte) bool {
	name := s.term.ReadFilename("Save slot [" + s.defaultName + "]: ")
	if name == "" {
		name = s.defaultName
	}
	if err := s.store.Save(name, s.story(), s.machine.Turns(), data); err != nil {
		s.term.WriteText(err.Error() + "\n")
		return false
	}
	return true
}

func (s *storeSaver) Restore() []byte {
	name := s.term.ReadFilename("Restore slot [latest]: ")
	if name == "" {
		_, data, err := s.store.Latest(s.story())
		if err != nil {
			s.term.WriteText(err.Error() + "\n")
			return nil
		}
		return data
	}
	data, err := s.store.ByName(name, s.story())
	if err != nil {
		s.term.WriteText(err.Error() + "\n")
		return nil
	}
	return data
}
