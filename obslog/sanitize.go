package obslog

// MaskDSN masks the credential-bearing middle of a database DSN for
// display, ported from the teacher's cmd.maskDSN helper.
func MaskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if len(dsn) > 20 {
		return dsn[:10] + "***" + dsn[len(dsn)-7:]
	}
	return "***"
}

// MaskARN masks an SNS topic ARN down to its account-free suffix so logs
// and the "config validate" command output don't leak account IDs.
func MaskARN(arn string) string {
	if arn == "" {
		return ""
	}
	if len(arn) > 16 {
		return "***" + arn[len(arn)-12:]
	}
	return "***"
}
