package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

// refreshを叩く（CSRF Double Submit：cookie csrf_token と header X-CSRF-Token 同じ値）
func callRefresh(t *testing.T, c *TestClient, ctx context.Context, csrfToken string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/refresh", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("NewRequest refresh failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if csrfToken != "" {
		req.Header.Set("X-CSRF-Token", csrfToken)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do refresh failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return resp, body
}

// jarを使わずcookieを固定してrefreshを叩く（replay用）
func callRefreshWithFixedCookies(t *testing.T, c *TestClient, ctx context.Context, csrfToken string, refreshCookie string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/auth/refresh", bytes.NewReader([]byte("{}")))
	if err != nil {
		t.Fatalf("NewRequest refresh fixed failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrfToken)
	req.Header.Set("Cookie", "refresh_token="+refreshCookie+"; csrf_token="+csrfToken)

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("HTTP.Do refresh fixed failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return resp, body
}

// refresh正常 + rotation + replay（古いrefreshの再利用）で401
func Test_Auth_Refresh_Rotation_And_ReplayDetected(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	access, _ := registerAndLogin(t, c, ctx, "e2e_refresh")
	if access == "" {
		t.Fatal("access token empty")
	}

	csrf := getCookieValueFromJar(t, c, c.BaseURL, "csrf_token")
	if csrf == "" {
		t.Fatalf("csrf_token cookie not found (BASE_URL=%s)", c.BaseURL)
	}

	//refresh_tokenはPath=/authなので/auth配下のURLで引く
	oldRefresh := getCookieValueFromJar(t, c, c.BaseURL+"/auth/refresh", "refresh_token")
	if oldRefresh == "" {
		t.Fatal("refresh_token cookie not found")
	}

	//1回目refresh（正常）→ 新しいaccessが返りcookieがローテーション
	resp, body := callRefresh(t, c, ctx, csrf)
	requireStatus(t, resp, http.StatusOK, body)
	r1 := mustDecode[JwtAccessToken](t, body)
	if strings.TrimSpace(r1.AccessToken) == "" {
		t.Fatalf("refresh returned empty access_token: body=%s", string(body))
	}

	newRefresh := getCookieValueFromJar(t, c, c.BaseURL+"/auth/refresh", "refresh_token")
	if newRefresh == "" {
		t.Fatal("refresh_token cookie missing after refresh")
	}
	if newRefresh == oldRefresh {
		t.Fatal("refresh token should rotate")
	}

	//CSRFも更新されているので新しい値で送る
	csrf = getCookieValueFromJar(t, c, c.BaseURL, "csrf_token")

	//古いrefresh_tokenの再利用（replay）→ 401
	resp, body = callRefreshWithFixedCookies(t, c, ctx, csrf, oldRefresh)
	requireStatus(t, resp, http.StatusUnauthorized, body)
	_ = mustDecode[ErrorResponse](t, body)
}

// CSRFヘッダ無し/不一致のrefreshは403
func Test_Auth_Refresh_CsrfMismatchRejected(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	registerAndLogin(t, c, ctx, "e2e_csrf")

	//ヘッダ無し
	resp, body := callRefresh(t, c, ctx, "")
	requireStatus(t, resp, http.StatusForbidden, body)

	//cookieと違う値
	resp, body = callRefresh(t, c, ctx, "not-the-cookie-value")
	requireStatus(t, resp, http.StatusForbidden, body)
	_ = mustDecode[ErrorResponse](t, body)
}

// logout後はrefreshできない
func Test_Auth_Logout_RefreshFailsAfterLogout(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	access, _ := registerAndLogin(t, c, ctx, "e2e_logout")

	//logout（refresh cookieで認証）
	resp, body := c.doJSON(ctx, t, http.MethodPost, "/auth/logout", access, []byte("{}"))
	requireStatus(t, resp, http.StatusOK, body)
	_ = mustDecode[SuccessResponse](t, body)

	//cookieは消されているのでrefreshは失敗
	csrf := getCookieValueFromJar(t, c, c.BaseURL, "csrf_token")
	resp, body = callRefresh(t, c, ctx, csrf)
	requireStatusOneOf(t, resp, body, http.StatusUnauthorized, http.StatusForbidden)
}

// /auth/me + force-logoutで旧JWTが無効になる
func Test_Auth_Me_And_ForceLogout(t *testing.T) {
	c := NewTestClient(t)
	ctx := context.Background()

	access, user := registerAndLogin(t, c, ctx, "e2e_force")

	resp, body := c.doJSON(ctx, t, http.MethodGet, "/auth/me", access, nil)
	requireStatus(t, resp, http.StatusOK, body)

	//管理者が対象ユーザーを強制ログアウト
	adminC := NewTestClient(t)
	adminAccess := adminLogin(t, adminC, ctx)

	resp, body = adminC.doJSON(ctx, t, http.MethodPost, "/admin/users/"+toStr(user.ID)+"/force-logout", adminAccess, nil)
	requireStatus(t, resp, http.StatusOK, body)

	fr := mustDecode[ForceLogoutResponse](t, body)
	if fr.UserID != user.ID {
		t.Fatalf("user_id mismatch want=%d got=%d", user.ID, fr.UserID)
	}
	if fr.NewTokenVersion <= user.TokenVersion {
		t.Fatalf("token_version should increase old=%d new=%d", user.TokenVersion, fr.NewTokenVersion)
	}

	//旧JWTはtoken_version不一致で401
	resp, body = c.doJSON(ctx, t, http.MethodGet, "/auth/me", access, nil)
	requireStatus(t, resp, http.StatusUnauthorized, body)
	_ = mustDecode[ErrorResponse](t, body)
}
