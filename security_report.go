package authcore

// SecurityReport returns the active security posture. It never exposes key
// material.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	workers := e.config.Password.Workers
	if e.pool != nil {
		workers = e.pool.Workers()
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		KeyID:            e.config.JWT.KeyID,
		TokenTTL:         e.config.JWT.TokenTTL,
		Leeway:           e.config.JWT.Leeway,
		CodeTTL:          e.config.TwoFactor.CodeTTL,
		RetentionSkew:    e.config.Revocation.RetentionSkew,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		HashWorkers:      workers,
		UserBackend:      e.stores.usersBackend,
		CodeBackend:      e.stores.codesBackend,
		RevokedBackend:   e.stores.revokedBackend,
		AuditEnabled:     e.config.Audit.Enabled,
		MetricsEnabled:   e.metrics.Enabled(),
		LintHighFindings: len(e.config.Lint().BySeverity(LintHigh)),
	}
}
