package call

// AISink is the outbound half of the speech AI backend channel, as the core
// needs it. The aibackend client implements this.
type AISink interface {
	// AppendAudio forwards one base64 µ-law frame to the backend.
	AppendAudio(payloadB64 string) error
	// TruncateItem cuts off the named in-flight assistant turn at the given
	// played-audio offset.
	TruncateItem(itemID string, contentIndex int, audioEndMS int64) error
	// CreateResponse asks the backend to produce the next assistant turn.
	CreateResponse() error
}

// TelephonySink is the outbound half of the telephony channel.
type TelephonySink interface {
	// SendAudio queues one base64 µ-law frame for playback to the caller.
	SendAudio(streamSID, payloadB64 string) error
	// SendMark enqueues a playback mark the transport acknowledges once the
	// audio ahead of it has played.
	SendMark(streamSID, name string) error
	// Clear discards all audio buffered but not yet played.
	Clear(streamSID string) error
}
