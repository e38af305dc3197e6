package domain

import "image/color"

// PlaybackState represents the current state of the audio player
type PlaybackState string

const (
	// StatePlaying indicates the player is currently playing
	StatePlaying PlaybackState = "Playing"
	// StatePaused indicates the player is paused
	StatePaused PlaybackState = "Paused"
	// StateStopped indicates the player is stopped
	StateStopped PlaybackState = "Stopped"
)

// SongID identifies a queued track across notifications. NoSong marks "none".
type SongID int64

// NoSong is the SongID of a stopped player
const NoSong SongID = -1

// Valid reports whether the id refers to a track
func (id SongID) Valid() bool {
	return id >= 0
}

// Status is the player status as reported at one notification.
// Absent fields carry their zero value (SongID carries NoSong).
type Status struct {
	State    PlaybackState
	SongID   SongID
	Elapsed  float64 // seconds
	Duration float64 // seconds
}

// Song holds the metadata of the current track. Empty strings mean "absent".
type Song struct {
	Title  string
	Artist string
	Album  string
}

// Snapshot is the player's reported state captured at one notification.
// It is replaced wholesale on every notification.
type Snapshot struct {
	Status
	Song
}

// Channel is a touch channel index on the panel, 0..NumChannels-1
type Channel int

// NumChannels is the number of touch channels (and indicator LEDs)
const NumChannels = 6

// Touch channels in panel order
const (
	ChannelUp Channel = iota
	ChannelDown
	ChannelBack
	ChannelMinus
	ChannelSelect
	ChannelPlus
)

// TouchAction distinguishes press from release
type TouchAction int

const (
	// TouchPress is delivered when a channel is touched
	TouchPress TouchAction = iota
	// TouchRelease is delivered when the touch ends
	TouchRelease
)

// String returns the action name
func (a TouchAction) String() string {
	if a == TouchPress {
		return "press"
	}
	return "release"
}

// TouchEvent is delivered by the touch collaborator
type TouchEvent struct {
	Channel Channel
	Action  TouchAction
}

// Off is the backlight color for "dark"
var Off = color.RGBA{A: 0xff}
