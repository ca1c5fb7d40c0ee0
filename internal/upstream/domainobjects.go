package upstream

import (
	"context"
	"net/http"
)

const domainObjectBase = "/domain-object-service/v1/projects"

type DomainObject struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId,omitempty"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

type Attribute struct {
	ID             string `json:"id,omitempty"`
	DomainObjectID string `json:"domainObjectId,omitempty"`
	Name           string `json:"name"`
	DataType       string `json:"dataType"`
}

// DomainObjectWithAttributes pairs a persisted object with its attributes.
type DomainObjectWithAttributes struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	CreatedAt  string      `json:"createdAt,omitempty"`
	UpdatedAt  string      `json:"updatedAt,omitempty"`
	Attributes []Attribute `json:"attributes"`
}

type batchCreateRequest struct {
	DomainObjectsWithAttributes map[string][]Attribute `json:"domainObjectsWithAttributes"`
}

type batchCreateResponse struct {
	DomainObjects []DomainObjectWithAttributes `json:"domainObjects"`
}

type withAttributesResponse struct {
	DomainObjectsWithAttributes map[string][]Attribute `json:"domainObjectsWithAttributes"`
}

func domainObjectPath(projectID string) string {
	return domainObjectBase + "/" + projectID
}

func (c *Client) ListDomainObjects(ctx context.Context, projectID string, page, size int) (*Page[DomainObject], error) {
	var out Page[DomainObject]
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, domainObjectPath(projectID)+"/domain-objects", pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DomainObjectsForRequirement returns the name -> attributes mapping of every
// domain object persisted for one requirement.
func (c *Client) DomainObjectsForRequirement(ctx context.Context, projectID, requirementID string) (map[string][]Attribute, error) {
	var out withAttributesResponse
	path := domainObjectPath(projectID) + "/requirements/" + requirementID + "/domain-objects"
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.DomainObjectsWithAttributes, nil
}

// CreateDomainObjectsBatch persists one requirement's reviewed domain objects
// in a single call. Attribute data types default upstream to string.
func (c *Client) CreateDomainObjectsBatch(ctx context.Context, projectID, requirementID string, objects map[string][]string) ([]DomainObjectWithAttributes, error) {
	req := batchCreateRequest{DomainObjectsWithAttributes: make(map[string][]Attribute, len(objects))}
	for name, attrNames := range objects {
		attrs := make([]Attribute, 0, len(attrNames))
		for _, a := range attrNames {
			attrs = append(attrs, Attribute{Name: a, DataType: "string"})
		}
		req.DomainObjectsWithAttributes[name] = attrs
	}

	var out batchCreateResponse
	path := domainObjectPath(projectID) + "/requirements/" + requirementID + "/domain-objects"
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return out.DomainObjects, nil
}

func (c *Client) UpdateDomainObject(ctx context.Context, projectID, requirementID, domainObjectID, name string) (*DomainObject, error) {
	var out DomainObject
	path := domainObjectPath(projectID) + "/requirements/" + requirementID + "/domain-objects/" + domainObjectID
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, path, nil, map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDomainObject(ctx context.Context, projectID, requirementID, domainObjectID string) error {
	path := domainObjectPath(projectID) + "/requirements/" + requirementID + "/domain-objects/" + domainObjectID
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, path, nil, nil, nil)
}

// Attribute CRUD, scoped under a domain object.

func attributePath(projectID, domainObjectID string) string {
	return domainObjectPath(projectID) + "/domain-objects/" + domainObjectID + "/attributes"
}

func (c *Client) ListAttributes(ctx context.Context, projectID, domainObjectID string, page, size int) (*Page[Attribute], error) {
	var out Page[Attribute]
	if err := c.doJSON(ctx, c.defaultClient, http.MethodGet, attributePath(projectID, domainObjectID), pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAttribute(ctx context.Context, projectID, domainObjectID string, in Attribute) (*Attribute, error) {
	var out Attribute
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPost, attributePath(projectID, domainObjectID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateAttribute(ctx context.Context, projectID, domainObjectID, attributeID string, in Attribute) (*Attribute, error) {
	var out Attribute
	if err := c.doJSON(ctx, c.defaultClient, http.MethodPut, attributePath(projectID, domainObjectID)+"/"+attributeID, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteAttribute(ctx context.Context, projectID, domainObjectID, attributeID string) error {
	return c.doJSON(ctx, c.defaultClient, http.MethodDelete, attributePath(projectID, domainObjectID)+"/"+attributeID, nil, nil, nil)
}
