package entity

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/azure/resource-graph-catalog-ingester/mapping"
	"github.com/azure/resource-graph-catalog-ingester/merge"
	"github.com/azure/resource-graph-catalog-ingester/value"
)

const (
	APIVersion = "backstage.io/v1alpha1"
	Kind       = "Resource"

	LocationType = "azure-resource-graph"

	AnnotationManagedByLocation       = "backstage.io/managed-by-location"
	AnnotationManagedByOriginLocation = "backstage.io/managed-by-origin-location"
	AnnotationViewURL                 = "backstage.io/view-url"
	AnnotationEditURL                 = "backstage.io/edit-url"
	AnnotationResourceID              = "azure.com/resource-id"
	AnnotationSubscriptionID          = "azure.com/subscription-id"
	AnnotationLocation                = "azure.com/location"

	DefaultOwnerTag      = "owner"
	DefaultPortalBaseURL = "https://portal.azure.com/#"
)

// Synthesizer converts raw Resource Graph records into catalog entities for a
// single provider.
type Synthesizer struct {
	ProviderID    string
	Mapping       *mapping.Program
	DefaultOwner  string
	OwnerTag      string
	PortalBaseURL string
	Logger        *logrus.Logger
}

func NewSynthesizer(providerID string, program *mapping.Program, defaultOwner string, ownerTag string, portalBaseURL string, logger *logrus.Logger) *Synthesizer {
	if ownerTag == "" {
		ownerTag = DefaultOwnerTag
	}
	if portalBaseURL == "" {
		portalBaseURL = DefaultPortalBaseURL
	}
	return &Synthesizer{
		ProviderID:    providerID,
		Mapping:       program,
		DefaultOwner:  defaultOwner,
		OwnerTag:      ownerTag,
		PortalBaseURL: portalBaseURL,
		Logger:        logger,
	}
}

// Synthesize builds the entity for record. It returns ok=false without an
// error when the merged entity has no usable metadata.name or spec.type. A
// record that is not an object is reported as an error.
func (synthesizer *Synthesizer) Synthesize(record value.Value) (value.Value, bool, error) {
	if !record.IsObject() {
		return value.Null(), false, fmt.Errorf("record must be an object, got %s", record.Kind())
	}

	entity := synthesizer.defaultEntity(record)
	if synthesizer.Mapping != nil {
		overlay := synthesizer.Mapping.Apply(record)
		entity = merge.Merge(entity, overlay)
	}

	name, hasName := Name(entity)
	entityType, hasType := Type(entity)
	if !hasName || !hasType {
		synthesizer.Logger.WithFields(logrus.Fields{
			"id":      recordField(record, "id"),
			"hasName": hasName,
			"hasType": hasType,
		}).Debug("Record has no resolvable name or type, skipping")
		return value.Null(), false, nil
	}

	synthesizer.Logger.Tracef("Synthesized entity %s of type %s", name, entityType)
	return entity, true, nil
}

func (synthesizer *Synthesizer) defaultEntity(record value.Value) value.Value {
	metadata := map[string]value.Value{}
	if name, ok := record.Get("name"); ok {
		metadata["name"] = name
		metadata["title"] = name
	}
	if properties, ok := record.Get("properties"); ok {
		if description, ok := properties.Get("description"); ok {
			metadata["description"] = description
		}
	}
	metadata["annotations"] = synthesizer.defaultAnnotations(record)

	spec := map[string]value.Value{}
	if resourceType, ok := record.Get("type"); ok {
		spec["type"] = resourceType
	}
	if owner, ok := synthesizer.owner(record); ok {
		spec["owner"] = owner
	}

	return value.Object(map[string]value.Value{
		"apiVersion": value.String(APIVersion),
		"kind":       value.String(Kind),
		"metadata":   value.Object(metadata),
		"spec":       value.Object(spec),
	})
}

func (synthesizer *Synthesizer) defaultAnnotations(record value.Value) value.Value {
	id, hasID := record.GetString("id")

	location := LocationRef(synthesizer.ProviderID, id)
	annotations := map[string]value.Value{
		AnnotationManagedByLocation:       value.String(location),
		AnnotationManagedByOriginLocation: value.String(location),
	}

	if hasID {
		annotations[AnnotationResourceID] = value.String(id)
	}
	if subscriptionID, ok := record.GetString("subscriptionId"); ok {
		annotations[AnnotationSubscriptionID] = value.String(subscriptionID)
	}
	if resourceLocation, ok := record.GetString("location"); ok {
		annotations[AnnotationLocation] = value.String(resourceLocation)
	}
	if tenantID, ok := record.GetString("tenantId"); ok && hasID {
		url := PortalURL(synthesizer.PortalBaseURL, tenantID, id)
		annotations[AnnotationViewURL] = value.String(url)
		annotations[AnnotationEditURL] = value.String(url)
	}

	return value.Object(annotations)
}

// owner prefers the record's owner tag over the configured default owner.
func (synthesizer *Synthesizer) owner(record value.Value) (value.Value, bool) {
	if tags, ok := record.Get("tags"); ok {
		if owner, ok := tags.Get(synthesizer.OwnerTag); ok {
			return owner, true
		}
	}
	if synthesizer.DefaultOwner != "" {
		return value.String(synthesizer.DefaultOwner), true
	}
	return value.Null(), false
}

// LocationRef is the location annotation value for a record of a provider.
func LocationRef(providerID string, resourceID string) string {
	if resourceID == "" {
		return fmt.Sprintf("%s:%s", LocationType, providerID)
	}
	return fmt.Sprintf("%s:%s:%s", LocationType, providerID, resourceID)
}

// PortalURL joins the portal base, the optional tenant segment and the
// resource id into a deep link.
func PortalURL(baseURL string, tenantID string, resourceID string) string {
	tenantSegment := ""
	if tenantID != "" {
		tenantSegment = "@" + tenantID
	}
	return baseURL + tenantSegment + "/resource" + resourceID
}

func Name(entity value.Value) (string, bool) {
	return nonEmptyString(entity, "metadata", "name")
}

func Type(entity value.Value) (string, bool) {
	return nonEmptyString(entity, "spec", "type")
}

// Ref is the human readable reference used in logs and reports.
func Ref(entity value.Value) string {
	kind, _ := entity.GetString("kind")
	name, _ := Name(entity)
	return fmt.Sprintf("%s:%s", kind, name)
}

func nonEmptyString(entity value.Value, section string, key string) (string, bool) {
	sectionValue, ok := entity.Get(section)
	if !ok {
		return "", false
	}
	text, ok := sectionValue.GetString(key)
	if !ok || text == "" {
		return "", false
	}
	return text, true
}

func recordField(record value.Value, key string) string {
	text, _ := record.GetString(key)
	return text
}
