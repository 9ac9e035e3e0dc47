package domain

// LogMessage は運用ログのメッセージコードを表す。
type LogMessage struct {
	Code       string
	Message    string
	UserImpact string
}

// Attrs はslog用の属性を返す。
func (m LogMessage) Attrs(args ...any) []any {
	return append([]any{"messageCode", m.Code, "userImpact", m.UserImpact}, args...)
}

var (
	LogIssuerStarted = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_STARTED",
		Message:    "Document Signing Certificate Issuer has started.",
		UserImpact: "N/A",
	}
	LogConfigurationFailed = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CONFIGURATION_FAILED",
		Message:    "Document Signing Certificate Issuer environment variable configuration is incorrect",
		UserImpact: "Unable to issue Document Signing Certificate",
	}
	LogConfigurationSuccess = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CONFIGURATION_SUCCESS",
		Message:    "Document Signing Certificate Issuer successfully configured",
		UserImpact: "N/A",
	}
	LogCertificateAlreadyExists = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CERTIFICATE_ALREADY_EXISTS",
		Message:    "Document Signing Certificate Issuer aborted since a certificate already exists for this KMS key",
		UserImpact: "Unable to issue certificate - either use the existing certificate or create a new KMS key",
	}
	LogCertificateIssueFailed = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CERTIFICATE_ISSUE_FAILED",
		Message:    "Document Signing Certificate Issuer was unable to issue a certificate",
		UserImpact: "Investigate log messages for further details",
	}
	LogCertificatePersistFailed = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CERTIFICATE_PERSIST_FAILED",
		Message:    "Document Signing Certificate was issued by the CA but could not be written to the bucket",
		UserImpact: "Certificate exists at the CA only - run reconciliation, do not re-issue",
	}
	LogCertificateIssued = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CERTIFICATE_ISSUED",
		Message:    "Document Signing Certificate Issuer successfully issued a new certificate",
		UserImpact: "N/A",
	}
	LogCertificateReconciled = LogMessage{
		Code:       "DOC_SIGNING_CERT_ISSUER_CERTIFICATE_RECONCILED",
		Message:    "Document Signing Certificate Issuer persisted a previously issued certificate",
		UserImpact: "N/A",
	}
)
