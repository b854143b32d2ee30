// Package transport posts encrypted templates to the voting backend.
//
// Verification sends {voterCode, encryptedTemplate} to a fixed endpoint.
// Enrollment adds the cleartext sessionKey so the backend can decrypt without
// taking part in key exchange, and targets a per-voter URL.
package transport

// Mode selects the flow and therefore the envelope shape and endpoint.
type Mode int

const (
	ModeVerify Mode = iota
	ModeEnroll
)

func (m Mode) String() string {
	if m == ModeEnroll {
		return "enroll"
	}
	return "verify"
}

// Envelope is the body shared by both flows.
type Envelope struct {
	VoterCode         string `json:"voterCode"`
	EncryptedTemplate string `json:"encryptedTemplate"`
}

// EnrollmentEnvelope is the admin registration body.
type EnrollmentEnvelope struct {
	Envelope
	SessionKey string `json:"sessionKey"`
}

// NewEnvelope builds the body for mode. sessionKey is only included for
// enrollment.
func NewEnvelope(mode Mode, voterCode, encryptedTemplate, sessionKey string) interface{} {
	env := Envelope{VoterCode: voterCode, EncryptedTemplate: encryptedTemplate}
	if mode == ModeEnroll {
		return EnrollmentEnvelope{Envelope: env, SessionKey: sessionKey}
	}
	return env
}
