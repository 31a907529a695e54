package telephony

import (
	"errors"
	"net/http"
	"time"

	"leadline/internal/calls"
	"leadline/internal/sms"
	"leadline/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler converts Twilio webhooks to internal calls and writes
// TwiML back. No business logic lives here; the services own the state
// machines.
//
// Failure contract: a delivery for an unknown or disabled tenant is
// answered 200 with empty TwiML so the provider drops it, a malformed
// delivery is rejected non-200, and persistence failures are 5xx so the
// provider retries.
type WebhookHandler struct {
	Calls *calls.Service
	SMS   *sms.Service

	// BaseURL is the public webhook base used to build callback URLs.
	BaseURL string

	Now func() time.Time
}

func (h WebhookHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// HandleVoiceInbound answers a ringing call with a Dial to the tenant's
// forwarding number.
func (h WebhookHandler) HandleVoiceInbound(c *gin.Context) {
	form, err := ParseVoiceInbound(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	fwd, err := h.Calls.OnIncomingCall(c.Request.Context(), form.To, form.From, form.CallSid)
	if err != nil {
		h.writeFailure(c, err)
		return
	}

	twiml, err := RenderForward(fwd, ForwardCallbacks(h.BaseURL, form.To))
	if err != nil {
		logger.FromGin(c).Error("twiml render failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

// HandleCallStatus applies a call lifecycle status callback.
func (h WebhookHandler) HandleCallStatus(c *gin.Context) {
	form, err := ParseCallStatus(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	err = h.Calls.OnCallStatus(c.Request.Context(), form.CallSid, form.CallStatus, calls.StatusMeta{
		DialedNumber:    form.To,
		CallerNumber:    form.From,
		DurationSeconds: form.DurationSeconds,
		RecordingURL:    form.RecordingURL,
	})
	if err != nil {
		h.writeFailure(c, err)
		return
	}
	h.writeEmpty(c)
}

// HandleDialStatus applies the forwarded-leg outcome and ends the call.
func (h WebhookHandler) HandleDialStatus(c *gin.Context) {
	form, err := ParseDialStatus(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	var answeredAt *time.Time
	if calls.NormalizeDialStatus(form.DialCallStatus) == calls.DialCompleted {
		at := h.now()
		answeredAt = &at
	}

	err = h.Calls.OnDialStatus(c.Request.Context(), form.CallSid, form.DialCallStatus, calls.StatusMeta{
		DialedNumber:    form.To,
		CallerNumber:    form.From,
		DurationSeconds: form.DurationSeconds,
	}, answeredAt)
	if err != nil {
		h.writeFailure(c, err)
		return
	}

	twiml, err := RenderHangup()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

// HandleRecording attaches a delivered recording to its call.
func (h WebhookHandler) HandleRecording(c *gin.Context) {
	form, err := ParseRecording(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	err = h.Calls.OnRecording(c.Request.Context(), form.CallSid, form.To, form.RecordingURL, form.DurationSeconds)
	if err != nil {
		h.writeFailure(c, err)
		return
	}
	h.writeEmpty(c)
}

// HandleSms runs the inbound message through the compliance state
// machine and replies with a Message verb when the machine says so.
func (h WebhookHandler) HandleSms(c *gin.Context) {
	form, err := ParseSmsInbound(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	reply, err := h.SMS.OnIncomingSms(c.Request.Context(), sms.IncomingSms{
		DialedNumber: form.To,
		From:         form.From,
		Body:         form.Body,
		MessageSID:   form.MessageSid,
		SourceIP:     c.ClientIP(),
	})
	if err != nil {
		h.writeFailure(c, err)
		return
	}

	twiml, err := RenderMessage(reply)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

// HandleSmsStatus applies a delivery-status callback for an outbound
// message.
func (h WebhookHandler) HandleSmsStatus(c *gin.Context) {
	form, err := ParseSmsInbound(c.Request)
	if err != nil {
		badForm(c, err)
		return
	}

	// Status callbacks are posted from the tenant's number, so the
	// tenant-owning side of the pair is From, not To.
	if err := h.SMS.OnMessageStatus(c.Request.Context(), form.From, form.MessageSid, form.SmsStatus); err != nil {
		h.writeFailure(c, err)
		return
	}
	h.writeEmpty(c)
}

func (h WebhookHandler) writeFailure(c *gin.Context, err error) {
	log := logger.FromGin(c)

	switch {
	case errors.Is(err, calls.ErrInvalidArgument), errors.Is(err, sms.ErrInvalidArgument):
		log.Warn("webhook rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	case errors.Is(err, calls.ErrTenantNotFound), errors.Is(err, sms.ErrTenantNotFound):
		// Unknown number: answer 200 empty so Twilio stops retrying a
		// delivery we will never be able to route.
		log.Warn("webhook for unknown tenant", "err", err)
		h.writeEmpty(c)
	default:
		log.Error("webhook processing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
	}
}

func (h WebhookHandler) writeEmpty(c *gin.Context) {
	twiml, err := RenderEmpty()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	writeTwiML(c, twiml)
}

func badForm(c *gin.Context, err error) {
	logger.FromGin(c).Warn("webhook form parse failed", "err", err)
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
}

func writeTwiML(c *gin.Context, twiml string) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}
