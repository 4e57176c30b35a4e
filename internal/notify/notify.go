// Package notify sends best-effort patient notifications over SMS and
// email. Sends run in their own goroutines; a failed notification never
// affects the booking that triggered it.
package notify

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/twilio/twilio-go"
	twilioapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/yuemei/clinic-booking/internal/booking"
	"github.com/yuemei/clinic-booking/pkg/logging"
)

type Config struct {
	SendGridAPIKey   string
	FromEmail        string
	FromName         string
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	ClinicName       string
}

type Service struct {
	cfg    Config
	twilio *twilio.RestClient
	logger *logging.Logger
}

func New(cfg Config, logger *logging.Logger) *Service {
	if cfg.ClinicName == "" {
		cfg.ClinicName = "悅美診所"
	}
	if logger == nil {
		logger = logging.Default()
	}

	s := &Service{cfg: cfg, logger: logger}

	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		s.twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username:   cfg.TwilioAccountSID,
			Password:   cfg.TwilioAuthToken,
			AccountSid: cfg.TwilioAccountSID,
		})
	}

	return s
}

var _ booking.Notifier = (*Service)(nil)

// AppointmentBooked confirms a new booking to the patient.
func (s *Service) AppointmentBooked(appt booking.Appointment) {
	body := fmt.Sprintf("%s：%s 您好，已為您預約 %s %s（%s）。如需更改請來電。",
		s.cfg.ClinicName, appt.PatientName, appt.Date, appt.Time, appt.Treatment)
	subject := fmt.Sprintf("%s 預約確認 - %s %s", s.cfg.ClinicName, appt.Date, appt.Time)

	go s.sendSMS(appt.PatientPhone, body)
	go s.sendEmail(appt.PatientEmail, appt.PatientName, subject, body)
}

// AppointmentCancelled tells the patient their booking was cancelled.
func (s *Service) AppointmentCancelled(appt booking.Appointment) {
	body := fmt.Sprintf("%s：%s 您好，您 %s %s 的預約已取消。",
		s.cfg.ClinicName, appt.PatientName, appt.Date, appt.Time)
	subject := fmt.Sprintf("%s 預約取消通知", s.cfg.ClinicName)

	go s.sendSMS(appt.PatientPhone, body)
	go s.sendEmail(appt.PatientEmail, appt.PatientName, subject, body)
}

// AppointmentReminder nudges the patient the day before. Called by the
// reminder worker, synchronously, so the worker controls pacing.
func (s *Service) AppointmentReminder(appt booking.Appointment) {
	body := fmt.Sprintf("%s：%s 您好，提醒您明天 %s 有 %s 的預約，請準時到診。",
		s.cfg.ClinicName, appt.PatientName, appt.Time, appt.Treatment)
	subject := fmt.Sprintf("%s 預約提醒 - %s %s", s.cfg.ClinicName, appt.Date, appt.Time)

	s.sendSMS(appt.PatientPhone, body)
	s.sendEmail(appt.PatientEmail, appt.PatientName, subject, body)
}

func (s *Service) sendSMS(to, body string) {
	if s.twilio == nil || s.cfg.TwilioFromNumber == "" {
		s.logger.Debug("twilio not configured, skipping SMS", "to", to)
		return
	}
	if to == "" {
		return
	}

	params := &twilioapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.cfg.TwilioFromNumber)
	params.SetBody(body)

	resp, err := s.twilio.Api.CreateMessage(params)
	if err != nil {
		s.logger.Warn("send SMS failed", "to", to, "error", err)
		return
	}
	if resp.Sid != nil {
		s.logger.Info("SMS sent", "to", to, "sid", *resp.Sid)
	}
}

func (s *Service) sendEmail(toEmail, toName, subject, body string) {
	if s.cfg.SendGridAPIKey == "" || s.cfg.FromEmail == "" {
		s.logger.Debug("sendgrid not configured, skipping email", "to", toEmail)
		return
	}
	if toEmail == "" {
		return
	}

	from := mail.NewEmail(s.cfg.FromName, s.cfg.FromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, body, "")

	client := sendgrid.NewSendClient(s.cfg.SendGridAPIKey)
	resp, err := client.Send(message)
	if err != nil {
		s.logger.Warn("send email failed", "to", toEmail, "error", err)
		return
	}
	if resp.StatusCode >= 300 {
		s.logger.Warn("sendgrid rejected email", "to", toEmail, "status", resp.StatusCode, "body", resp.Body)
		return
	}
	s.logger.Info("email sent", "to", toEmail, "status", resp.StatusCode)
}
