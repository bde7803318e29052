package rgba

// Position is the mux channel of a sensor around the robot body.
type Position uint8

const (
	Front Position = iota
	FrontRight
	Right
	RearRight
	Rear
	RearLeft
	Left
	FrontLeft
)

var positionNames = [...]string{"Front", "FrontRight", "Right", "RearRight", "Rear", "RearLeft", "Left", "FrontLeft"}

func (p Position) String() string {
	if int(p) < len(positionNames) {
		return positionNames[p]
	}
	return "None"
}
