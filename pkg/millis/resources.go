package millis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Knowledge bases

type KnowledgeBaseText struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

type KnowledgeBaseParams struct {
	Name  string              `json:"name"`
	URLs  []string            `json:"urls,omitempty"`
	Texts []KnowledgeBaseText `json:"texts,omitempty"`
}

// UploadFile is a staged local file sent as one multipart part.
type UploadFile struct {
	Name string
	Path string
}

func (c *Client) ListKnowledgeBases(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "list_knowledge_bases", http.MethodGet, "/knowledge-bases", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateKnowledgeBase(ctx context.Context, params KnowledgeBaseParams) (Resource, error) {
	var kb Resource
	if err := c.do(ctx, "create_knowledge_base", http.MethodPost, "/knowledge-bases", params, &kb); err != nil {
		return nil, err
	}
	if kb.String("id") == "" {
		return nil, fmt.Errorf("millis create_knowledge_base: response has no id")
	}
	return kb, nil
}

// UploadKnowledgeBase creates a knowledge base from staged files.
func (c *Client) UploadKnowledgeBase(ctx context.Context, name string, files []UploadFile) (Resource, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("millis upload_knowledge_base: no files")
	}

	body, contentType, err := multipartBody(name, files)
	if err != nil {
		return nil, err
	}

	var kb Resource
	if err := c.send(ctx, "upload_knowledge_base", http.MethodPost, "/knowledge-bases", body, contentType, &kb); err != nil {
		return nil, err
	}
	if kb.String("id") == "" {
		return nil, fmt.Errorf("millis upload_knowledge_base: response has no id")
	}
	return kb, nil
}

func multipartBody(name string, files []UploadFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("name", name); err != nil {
		return nil, "", err
	}

	for _, f := range files {
		filename := f.Name
		if filename == "" {
			filename = filepath.Base(f.Path)
		}

		part, err := w.CreateFormFile("files", filename)
		if err != nil {
			return nil, "", err
		}

		src, err := os.Open(f.Path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open staged file: %w", err)
		}
		_, err = io.Copy(part, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to copy staged file: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *Client) RefreshKnowledgeBase(ctx context.Context, id string) error {
	return c.do(ctx, "refresh_knowledge_base", http.MethodPost, "/knowledge-bases/"+escape(id)+"/refresh", nil, nil)
}

func (c *Client) DeleteKnowledgeBase(ctx context.Context, id string) error {
	return c.do(ctx, "delete_knowledge_base", http.MethodDelete, "/knowledge-bases/"+escape(id), nil, nil)
}

// Phone numbers

// PhoneNumberUpdate carries only the fields the caller set.
type PhoneNumberUpdate struct {
	Nickname        *string `json:"nickname,omitempty"`
	InboundAgentID  *string `json:"inbound_agent_id,omitempty"`
	OutboundAgentID *string `json:"outbound_agent_id,omitempty"`
}

func (c *Client) ListPhoneNumbers(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "list_phone_numbers", http.MethodGet, "/phone-numbers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreatePhoneNumber(ctx context.Context, areaCode string) (Resource, error) {
	var number Resource
	if err := c.do(ctx, "create_phone_number", http.MethodPost, "/phone-numbers", map[string]string{"area_code": areaCode}, &number); err != nil {
		return nil, err
	}
	if number.String("phone_number") == "" {
		return nil, fmt.Errorf("millis create_phone_number: response has no phone_number")
	}
	return number, nil
}

func (c *Client) UpdatePhoneNumber(ctx context.Context, phoneNumber string, update PhoneNumberUpdate) (Resource, error) {
	var number Resource
	if err := c.do(ctx, "update_phone_number", http.MethodPut, "/phone-numbers/"+escape(phoneNumber), update, &number); err != nil {
		return nil, err
	}
	if number == nil {
		number = Resource{}
	}
	if number.String("phone_number") == "" {
		number["phone_number"] = phoneNumber
	}
	return number, nil
}

func (c *Client) DeletePhoneNumber(ctx context.Context, phoneNumber string) error {
	return c.do(ctx, "delete_phone_number", http.MethodDelete, "/phone-numbers/"+escape(phoneNumber), nil, nil)
}
