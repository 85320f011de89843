package chat_widget

import "fmt"

type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeHTTPError      OutcomeKind = "http_error"
	OutcomeTransportError OutcomeKind = "transport_error"
)

// Outcome is the result of one exchange with the backend. Exactly one of
// Response (success), Status/Detail (http error) or Err (transport) is set.
type Outcome struct {
	Kind     OutcomeKind
	Response ChatResponse
	Status   int
	Detail   string
	Err      error
}

func Success(resp ChatResponse) Outcome {
	return Outcome{Kind: OutcomeSuccess, Response: resp}
}

func HTTPError(status int, detail string) Outcome {
	return Outcome{Kind: OutcomeHTTPError, Status: status, Detail: detail}
}

func TransportError(err error) Outcome {
	return Outcome{Kind: OutcomeTransportError, Err: err}
}

// Message converts the outcome into the bot entry appended to the transcript.
func (o Outcome) Message() Message {
	switch o.Kind {
	case OutcomeSuccess:
		return Message{Role: Bot, Text: o.Response.Response, Images: o.Response.Images}
	case OutcomeHTTPError:
		detail := o.Detail
		if detail == "" {
			detail = UnknownServerError
		}
		return Message{Role: Bot, Text: fmt.Sprintf(ServerErrorFormat, detail)}
	default:
		return Message{Role: Bot, Text: CommunicationFailure}
	}
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeSuccess:
		return "success"
	case OutcomeHTTPError:
		return fmt.Sprintf("http error %d: %s", o.Status, o.Detail)
	default:
		return fmt.Sprintf("transport error: %v", o.Err)
	}
}
