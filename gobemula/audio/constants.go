package audio

const (
	// CPUFrequency is the DMG master clock in Hz.
	CPUFrequency = 4194304

	// frameSequencerRate is the rate at which length/envelope/sweep
	// clocks are derived from the master clock.
	frameSequencerRate = 512
	cyclesPerStep      = CPUFrequency / frameSequencerRate

	// DefaultSampleRate is the host output rate.
	DefaultSampleRate = 44100

	waveRAMSize = 16
)

// dutyTable holds the four pulse waveform shapes, one bit per phase step.
var dutyTable = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1}, // 12.5%
	{1, 0, 0, 0, 0, 0, 0, 1}, // 25%
	{1, 0, 0, 0, 0, 1, 1, 1}, // 50%
	{0, 1, 1, 1, 1, 1, 1, 0}, // 75%
}
