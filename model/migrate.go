package model

import "gorm.io/gorm"

// ownedModels lists every table this service owns. The authme table is
// externally owned and deliberately excluded: it must never be altered here.
var ownedModels = []interface{}{
	&RegistrationFlow{},
	&VerificationHistory{},
	&Session{},
	&AIMemory{},
	&RegistrationAudit{},
}

// AutoMigrate creates or updates the service-owned tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(ownedModels...)
}
