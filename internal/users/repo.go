// Package users persists the gateway's local user records. The upstream
// services know users only by their Firebase UID; this table gives the
// gateway its own id plus profile fields for first-login bookkeeping.
package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{db: db}
}

type UpsertUser struct {
	FirebaseUID string
	Email       string
	DisplayName string
	PhotoURL    string
}

// EnsureUser upserts the record for a Firebase UID and returns the local id.
// Profile fields only ever fill in or refresh, never blank out.
func (r *Repo) EnsureUser(ctx context.Context, u UpsertUser) (string, error) {
	if u.FirebaseUID == "" {
		return "", fmt.Errorf("firebase_uid required")
	}

	const q = `
insert into users (firebase_uid, email, display_name, photo_url, updated_at)
values ($1, nullif($2,''), nullif($3,''), nullif($4,''), now())
on conflict (firebase_uid) do update
set
  email = coalesce(excluded.email, users.email),
  display_name = coalesce(excluded.display_name, users.display_name),
  photo_url = coalesce(excluded.photo_url, users.photo_url),
  updated_at = now()
returning id::text;
`
	var id string
	if err := r.db.QueryRow(ctx, q, u.FirebaseUID, u.Email, u.DisplayName, u.PhotoURL).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

// Profile is the stored user record.
type Profile struct {
	ID          string `json:"id"`
	FirebaseUID string `json:"firebaseUid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// GetByFirebaseUID returns the stored profile for a Firebase UID.
func (r *Repo) GetByFirebaseUID(ctx context.Context, firebaseUID string) (*Profile, error) {
	const q = `
select id::text, firebase_uid, coalesce(email,''), coalesce(display_name,''), coalesce(photo_url,'')
from users
where firebase_uid = $1;
`
	var p Profile
	err := r.db.QueryRow(ctx, q, firebaseUID).Scan(&p.ID, &p.FirebaseUID, &p.Email, &p.DisplayName, &p.PhotoURL)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
