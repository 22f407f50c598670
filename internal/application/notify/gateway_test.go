package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hr-workforce-api/internal/domain"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendCode(to, code string) error {
	args := m.Called(to, code)
	return args.Error(0)
}

type mockSMS struct {
	mock.Mock
}

func (m *mockSMS) SendCode(ctx context.Context, phone, code string) error {
	args := m.Called(ctx, phone, code)
	return args.Error(0)
}

func TestSendOTP_RoutesEmailChannel(t *testing.T) {
	mailer := new(mockMailer)
	sms := new(mockSMS)
	gw := NewGateway(mailer, sms)

	mailer.On("SendCode", "jane@corp.test", "123456").Return(nil)

	err := gw.SendOTP(context.Background(), domain.ChannelEmail, "jane@corp.test", "123456")
	require.NoError(t, err)
	mailer.AssertExpectations(t)
	sms.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendOTP_RoutesSMSChannel(t *testing.T) {
	mailer := new(mockMailer)
	sms := new(mockSMS)
	gw := NewGateway(mailer, sms)

	sms.On("SendCode", mock.Anything, "+15550100", "123456").Return(nil)

	err := gw.SendOTP(context.Background(), domain.ChannelSMS, "+15550100", "123456")
	require.NoError(t, err)
	sms.AssertExpectations(t)
	mailer.AssertNotCalled(t, "SendCode", mock.Anything, mock.Anything)
}

func TestSendOTP_NilSMSSenderFails(t *testing.T) {
	gw := NewGateway(new(mockMailer), nil)

	err := gw.SendOTP(context.Background(), domain.ChannelSMS, "+15550100", "123456")
	assert.Error(t, err)
}

func TestSendOTP_UnknownChannelRejected(t *testing.T) {
	gw := NewGateway(new(mockMailer), new(mockSMS))

	err := gw.SendOTP(context.Background(), "PIGEON", "anywhere", "123456")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestSendOTP_DeliveryFailureSurfaces(t *testing.T) {
	mailer := new(mockMailer)
	gw := NewGateway(mailer, new(mockSMS))

	mailer.On("SendCode", mock.Anything, mock.Anything).Return(errors.New("smtp refused"))

	err := gw.SendOTP(context.Background(), domain.ChannelEmail, "jane@corp.test", "123456")
	assert.Error(t, err)
}
