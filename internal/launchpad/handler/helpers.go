package handler

import (
	"errors"
	"net/http"
	"strconv"

	"web3-launchpad/internal/launchpad/service"

	"github.com/bytedance/sonic"
)

var errInvalidChainID = errors.New("invalid chainId")

// writeJSON 序列化失败时退回纯文本 500
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError 输入错误 400, 其余 500
func writeServiceError(w http.ResponseWriter, err error) {
	if service.IsInputError(err) || errors.Is(err, errInvalidChainID) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func queryInt(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// chainID 未传时使用默认链
func chainID(r *http.Request, def uint64) (uint64, error) {
	v := r.URL.Query().Get("chainId")
	if v == "" {
		return def, nil
	}
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, errInvalidChainID
	}
	return id, nil
}
