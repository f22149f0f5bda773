package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub/service"
)

type UserController struct {
	users *service.UserService
}

func NewUserController(users *service.UserService) *UserController {
	return &UserController{users: users}
}

// Sync 同步外部身份提供方的用户资料
func (ctrl *UserController) Sync(c *gin.Context) {
	logger.Infof("[%s] Handling user sync request", c.GetString("requestId"))

	var input struct {
		ClerkID        string `json:"clerkId" binding:"required"`
		Email          string `json:"email" binding:"required,email"`
		FirstName      string `json:"firstName"`
		LastName       string `json:"lastName"`
		ProfilePicture string `json:"profilePicture"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	session, err := ctrl.users.Sync(c.Request.Context(), service.SyncInput{
		ClerkID:        input.ClerkID,
		Email:          input.Email,
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		ProfilePicture: input.ProfilePicture,
	})
	if err != nil {
		serviceError(c, err, "Failed to sync user")
		return
	}

	logger.Infof("[%s] User %s synced successfully", c.GetString("requestId"), session.User.Email)
	success(c, http.StatusOK, "User synced successfully", session)
}

func (ctrl *UserController) Register(c *gin.Context) {
	logger.Infof("[%s] Handling user registration request", c.GetString("requestId"))

	var input struct {
		Email     string `json:"email" binding:"required,email"`
		Password  string `json:"password" binding:"required,min=8"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := ctrl.users.Register(c.Request.Context(), service.RegisterInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		serviceError(c, err, "Failed to register user")
		return
	}

	logger.Infof("[%s] User %s registered successfully", c.GetString("requestId"), user.Email)
	success(c, http.StatusCreated, "User registered successfully", user)
}

func (ctrl *UserController) Login(c *gin.Context) {
	logger.Infof("[%s] Handling user login request", c.GetString("requestId"))

	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	session, err := ctrl.users.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		serviceError(c, err, "Failed to login")
		return
	}

	logger.Infof("[%s] User %s login successfully", c.GetString("requestId"), input.Email)
	success(c, http.StatusOK, "Login successful", session)
}

func (ctrl *UserController) Me(c *gin.Context) {
	success(c, http.StatusOK, "User retrieved successfully", currentUser(c))
}

func (ctrl *UserController) UpdateProfile(c *gin.Context) {
	var input struct {
		FirstName string `json:"firstName" binding:"required"`
		LastName  string `json:"lastName" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := ctrl.users.UpdateProfile(c.Request.Context(), c.GetString("userId"), input.FirstName, input.LastName)
	if err != nil {
		serviceError(c, err, "Failed to update profile")
		return
	}
	success(c, http.StatusOK, "Profile updated successfully", user)
}
