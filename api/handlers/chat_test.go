package handlers

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/charforge/agent/conversation"
	"github.com/BaSui01/charforge/api"
	"github.com/BaSui01/charforge/llm/gemini"
	"github.com/BaSui01/charforge/types"
)

func TestChatHandler_SendKeepsHistory(t *testing.T) {
	client := &scriptedClient{replies: []*gemini.Response{
		textReply("안녕하세요, 모험가님."),
		textReply("화염술사는 불의 정령과 계약한 마법사입니다."),
	}}
	mux := newTestMux(newTestRegistry(client))
	s := createSession(t, mux, "")
	path := "/api/v1/sessions/" + s.ID + "/chat"

	w := do(t, mux, http.MethodPost, path, `{"message":"안녕"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp api.ChatResponse
	decode(t, w, &resp)
	assert.Equal(t, "안녕하세요, 모험가님.", resp.Reply)
	assert.Equal(t, 2, resp.Turns)

	w = do(t, mux, http.MethodPost, path, `{"message":"화염술사에 대해 알려줘"}`)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.Equal(t, 4, resp.Turns)
	assert.Len(t, client.lastRequest().Contents, 3)

	w = do(t, mux, http.MethodGet, path+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var history []conversation.Turn
	decode(t, w, &history)
	require.Len(t, history, 4)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, types.RoleModel, history[3].Role)
}

func TestChatHandler_OneShotSkipsHistory(t *testing.T) {
	client := &scriptedClient{replies: []*gemini.Response{textReply("용사")}}
	mux := newTestMux(newTestRegistry(client))
	s := createSession(t, mux, "")

	w := do(t, mux, http.MethodPost, "/api/v1/sessions/"+s.ID+"/chat", `{"message":"한 단어로","one_shot":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp api.ChatResponse
	decode(t, w, &resp)
	assert.Equal(t, "용사", resp.Reply)
	assert.Equal(t, 0, resp.Turns)
}

func TestChatHandler_Media(t *testing.T) {
	client := &scriptedClient{replies: []*gemini.Response{textReply("붉은 망토를 두른 인물입니다.")}}
	mux := newTestMux(newTestRegistry(client))
	s := createSession(t, mux, "")

	data := base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
	w := do(t, mux, http.MethodPost, "/api/v1/sessions/"+s.ID+"/chat",
		`{"message":"이 그림을 설명해줘","data":"`+data+`","file_name":"hero.PNG"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req := client.lastRequest()
	require.NotNil(t, req)
	var inline *gemini.InlineData
	for _, p := range req.Contents[0].Parts {
		if p.InlineData != nil {
			inline = p.InlineData
		}
	}
	require.NotNil(t, inline)
	assert.Equal(t, "image/png", inline.MimeType)
	assert.Equal(t, data, inline.Data)
}

func TestChatHandler_Validation(t *testing.T) {
	mux := newTestMux(newTestRegistry(&scriptedClient{}))
	s := createSession(t, mux, "")
	path := "/api/v1/sessions/" + s.ID + "/chat"

	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"  "}`},
		{"data without type", `{"message":"x","data":"AAAA"}`},
		{"data not base64", `{"message":"x","data":"%%%","mime_type":"image/png"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, http.MethodPost, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestChatHandler_NoTextReply(t *testing.T) {
	mux := newTestMux(newTestRegistry(&scriptedClient{replies: []*gemini.Response{reply()}}))
	s := createSession(t, mux, "")

	w := do(t, mux, http.MethodPost, "/api/v1/sessions/"+s.ID+"/chat", `{"message":"안녕"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, string(types.ErrNoResult), env.Error.Code)
}

func TestChatHandler_NotConfigured(t *testing.T) {
	mux := newTestMux(newTestRegistry(nil))
	s := createSession(t, mux, "")

	w := do(t, mux, http.MethodPost, "/api/v1/sessions/"+s.ID+"/chat", `{"message":"안녕"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
