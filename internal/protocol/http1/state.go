package http1

// State is the parser position within one request.
type State uint8

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody      // classic body of content-length bytes
	StateBodyStart // expecting the opening boundary line
	StateBodyData  // part headers, text values or streamed file bytes
	StateBodyEnd   // closing boundary seen outside a file part
	StateFinish
)

func (s State) String() string {
	switch s {
	case StateRequestLine:
		return "REQUEST_LINE"
	case StateHeaders:
		return "HEADERS"
	case StateBody:
		return "BODY"
	case StateBodyStart:
		return "BODY_START"
	case StateBodyData:
		return "BODY_DATA"
	case StateBodyEnd:
		return "BODY_END"
	case StateFinish:
		return "FINISH"
	}
	return "UNKNOWN"
}

// Outcome is what one Parse call produced. Failures are values, never panics.
type Outcome uint8

const (
	// NeedMore: the request is incomplete and nothing needs answering yet.
	NeedMore Outcome = iota
	// Complete: a classic request is fully parsed.
	Complete
	// Malformed: a classic request (or a multipart head) failed to parse.
	Malformed
	// UploadStreaming: multipart headers are consumed and the body is in flight.
	UploadStreaming
	// UploadComplete: the multipart body reached its closing boundary.
	UploadComplete
	// UploadFailed: multipart framing broke or the file sink failed.
	UploadFailed
)

func (o Outcome) String() string {
	switch o {
	case NeedMore:
		return "need_more"
	case Complete:
		return "complete"
	case Malformed:
		return "malformed"
	case UploadStreaming:
		return "upload_streaming"
	case UploadComplete:
		return "upload_complete"
	case UploadFailed:
		return "upload_failed"
	}
	return "unknown"
}

// Failed reports whether o is a failure outcome.
func (o Outcome) Failed() bool {
	return o == Malformed || o == UploadFailed
}
