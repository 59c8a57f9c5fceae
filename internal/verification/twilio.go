package verification

import (
	"context"
	"errors"
	"strings"

	twilio "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	verify "github.com/twilio/twilio-go/rest/verify/v2"
)

// Twilio error codes that mean the number itself is bad.
var invalidNumberCodes = map[int]bool{
	21211: true, // invalid 'To' phone number
	21614: true, // not a mobile number
	60200: true, // invalid parameter
	60205: true, // SMS is not supported by landline
}

// codeNotFound is returned by the check call when no pending verification exists,
// typically after expiry or too many attempts.
const codeNotFound = 20404

// Credentials for the Twilio Verify service. All three must be set.
type Credentials struct {
	AccountSID string
	AuthToken  string
	ServiceSID string
}

func (c Credentials) Complete() bool {
	return strings.TrimSpace(c.AccountSID) != "" &&
		strings.TrimSpace(c.AuthToken) != "" &&
		strings.TrimSpace(c.ServiceSID) != ""
}

// TwilioProvider implements Provider with the Twilio Verify v2 API.
type TwilioProvider struct {
	client     *twilio.RestClient
	serviceSID string
}

func NewTwilioProvider(c Credentials) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: c.AccountSID,
		Password: c.AuthToken,
	})
	return &TwilioProvider{client: client, serviceSID: c.ServiceSID}
}

func (p *TwilioProvider) IssueChallenge(ctx context.Context, phone, channel string) error {
	params := &verify.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel(channel)

	_, err := withContext(ctx, func() (struct{}, error) {
		_, err := p.client.VerifyV2.CreateVerification(p.serviceSID, params)
		return struct{}{}, translate(err)
	})
	return err
}

func (p *TwilioProvider) CheckChallenge(ctx context.Context, phone, code string) (bool, error) {
	params := &verify.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	return withContext(ctx, func() (bool, error) {
		resp, err := p.client.VerifyV2.CreateVerificationCheck(p.serviceSID, params)
		if err != nil {
			var rest *twclient.TwilioRestError
			if errors.As(err, &rest) && rest.Code == codeNotFound {
				return false, nil
			}
			return false, translate(err)
		}
		return resp.Status != nil && *resp.Status == "approved", nil
	})
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	var rest *twclient.TwilioRestError
	if errors.As(err, &rest) && invalidNumberCodes[rest.Code] {
		return ErrInvalidNumber
	}
	return err
}

type result[T any] struct {
	val T
	err error
}

// withContext bounds a blocking SDK call by ctx. The call keeps running in the
// background after ctx expires; its result is dropped. The value only crosses
// goroutines through the channel.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	done := make(chan result[T], 1)
	go func() {
		v, err := fn()
		done <- result[T]{val: v, err: err}
	}()
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
