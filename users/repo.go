package users

// UserRepo stores profiles by ID and phone number.
type UserRepo interface {
	Upsert(user *Profile) error
	Delete(phone string) error
	GetByPhone(phone string) (*Profile, error)
	GetByID(ID string) (*Profile, error)
	SetStatus(phone string, status Status) error
}
