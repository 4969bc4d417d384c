package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/cornelk/hashmap"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Registration is what a monitored application posts to register itself.
type Registration struct {
	Name          string `json:"name"`
	HealthUrl     string `json:"healthUrl"`
	ManagementUrl string `json:"managementUrl,omitempty"`
	ServiceUrl    string `json:"serviceUrl,omitempty"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.HealthUrl, validation.Required, is.URL),
		validation.Field(&r.ManagementUrl, is.URL),
		validation.Field(&r.ServiceUrl, is.URL),
	)
}

type Instance struct {
	ID           string       `json:"id"`
	Registration Registration `json:"registration"`
	RegisteredAt time.Time    `json:"registeredAt"`
}

type InstanceRegistry interface {
	Register(ctx context.Context, reg Registration) (Instance, error)
	Deregister(ctx context.Context, id string) error
	List(ctx context.Context) []Instance
}

type instanceRegistry struct {
	instances *hashmap.HashMap
	now       func() time.Time
}

func NewInstanceRegistry() InstanceRegistry {
	return &instanceRegistry{instances: &hashmap.HashMap{}, now: time.Now}
}

// InstanceID derives a stable id from the health url so re-registering replaces the entry.
func InstanceID(healthUrl string) string {
	sum := sha256.Sum256([]byte(healthUrl))
	return hex.EncodeToString(sum[:])[:12]
}

func (r *instanceRegistry) Register(_ context.Context, reg Registration) (Instance, error) {
	if err := reg.Validate(); err != nil {
		return Instance{}, err
	}
	instance := Instance{
		ID:           InstanceID(reg.HealthUrl),
		Registration: reg,
		RegisteredAt: r.now().UTC(),
	}
	r.instances.Set(instance.ID, instance)
	return instance, nil
}

func (r *instanceRegistry) Deregister(_ context.Context, id string) error {
	if _, ok := r.instances.Get(id); !ok {
		return ObjectNotFoundErr("instance", id)
	}
	r.instances.Del(id)
	return nil
}

func (r *instanceRegistry) List(_ context.Context) []Instance {
	list := make([]Instance, 0, r.instances.Len())
	for kv := range r.instances.Iter() {
		list = append(list, kv.Value.(Instance))
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Registration.Name != list[j].Registration.Name {
			return list[i].Registration.Name < list[j].Registration.Name
		}
		return list[i].ID < list[j].ID
	})
	return list
}
