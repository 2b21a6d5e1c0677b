package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	return &sns.PublishOutput{}, args.Error(0)
}

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	return &ses.SendEmailOutput{}, args.Error(0)
}

func TestSNSNotifier(t *testing.T) {
	client := new(mockSNS)
	client.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return *in.TopicArn == "arn:aws:sns:us-east-1:1:docqa" && *in.Subject == "done" && *in.Message == "3 answered"
	})).Return(nil)

	err := NewSNSNotifier(client, "arn:aws:sns:us-east-1:1:docqa").Notify(context.Background(), "done", "3 answered")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSESNotifier(t *testing.T) {
	client := new(mockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return *in.Source == "bot@example.com" &&
			assert.ObjectsAreEqual([]string{"ops@example.com"}, in.Destination.ToAddresses) &&
			*in.Message.Body.Text.Data == "body"
	})).Return(nil)

	err := NewSESNotifier(client, "bot@example.com", []string{"ops@example.com"}).Notify(context.Background(), "subject", "body")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMultiNotifier_JoinsFailures(t *testing.T) {
	okSNS := new(mockSNS)
	okSNS.On("Publish", mock.Anything, mock.Anything).Return(nil)
	badSES := new(mockSES)
	badSES.On("SendEmail", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	multi := MultiNotifier{
		NewSNSNotifier(okSNS, "arn"),
		NewSESNotifier(badSES, "a@b.co", []string{"c@d.co"}),
	}

	err := multi.Notify(context.Background(), "s", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
	okSNS.AssertNumberOfCalls(t, "Publish", 1)
}

func TestNewNotifier_NothingEnabled(t *testing.T) {
	n, err := NewNotifier(context.Background(), Options{})
	require.NoError(t, err)
	assert.IsType(t, NopNotifier{}, n)
	assert.NoError(t, n.Notify(context.Background(), "s", "b"))
}
