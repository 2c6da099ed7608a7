package model

// Video-call notification types.
const (
	CallIncoming = "incoming_call"
	CallAccepted = "call_accepted"
	CallDeclined = "call_declined"
	CallEnded    = "call_ended"
)

// CallEvent is the video-calls channel payload.
type CallEvent struct {
	Type         string `json:"type"`
	CallID       string `json:"callId"`
	MeetingID    string `json:"meetingId,omitempty"`
	Token        string `json:"token,omitempty"`
	FromUser     *User  `json:"from_user,omitempty"`
	ToUser       *User  `json:"to_user,omitempty"`
	TargetUserID int64  `json:"target_user_id,omitempty"`
}

// JoinInfo is what the UI needs to join an accepted call.
type JoinInfo struct {
	MeetingID string
	Token     string
}
